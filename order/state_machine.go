package order

import (
	"errors"
	"fmt"
)

// StateTransition 状态转换
type StateTransition struct {
	From Status
	To   Status
}

// ErrIllegalTransition 非法状态转换。
var ErrIllegalTransition = errors.New("illegal state transition")

// StateMachine 订单状态机。OPEN 是唯一非终态，两条出边互斥且只能触发一次。
type StateMachine struct {
	transitions map[StateTransition]bool
}

// NewStateMachine 创建新的状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[StateTransition]bool),
	}
	sm.initializeTransitions()
	return sm
}

func (sm *StateMachine) initializeTransitions() {
	legalTransitions := []StateTransition{
		{StatusOpen, StatusCompleted}, // 成交
		{StatusOpen, StatusCancelled}, // 撤单
		// 终态不能转换（COMPLETED, CANCELLED）
	}
	for _, t := range legalTransitions {
		sm.transitions[t] = true
	}
}

// ValidateTransition 验证状态转换是否合法。
// 与交易所回报不同，这里不允许相同状态的幂等转换：重复成交/撤单必须被拒绝。
func (sm *StateMachine) ValidateTransition(from, to Status) error {
	if !sm.transitions[StateTransition{From: from, To: to}] {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// Transition 校验后返回状态已变更的订单副本。
func (sm *StateMachine) Transition(o Order, to Status) (Order, error) {
	if err := sm.ValidateTransition(o.Status, to); err != nil {
		return o, err
	}
	o.Status = to
	return o, nil
}

// CanSettle 判断当前状态下是否可以成交
func (sm *StateMachine) CanSettle(status Status) bool {
	return sm.transitions[StateTransition{status, StatusCompleted}]
}

// CanCancel 判断当前状态下是否可以撤单
func (sm *StateMachine) CanCancel(status Status) bool {
	return sm.transitions[StateTransition{status, StatusCancelled}]
}
