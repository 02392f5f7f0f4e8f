package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBeginAndStep(t *testing.T) {
	tr := NewTracker(time.Minute)

	assert.Equal(t, StepIdle, tr.Step(1))

	tr.Begin(1, StepDepositAmount, Scratch{})
	assert.Equal(t, StepDepositAmount, tr.Step(1))
	assert.Equal(t, StepIdle, tr.Step(2))
}

func TestBeginResetsScratch(t *testing.T) {
	tr := NewTracker(time.Minute)

	tr.Begin(1, StepWithdrawQuantity, Scratch{ItemLabel: "proxy"})
	assert.Equal(t, "proxy", tr.Scratch(1).ItemLabel)

	// новый диалог начинается с чистыми полями
	tr.Begin(1, StepDepositAmount, Scratch{})
	assert.Empty(t, tr.Scratch(1).ItemLabel)
}

func TestAdvanceKeepsScratch(t *testing.T) {
	tr := NewTracker(time.Minute)

	tr.Begin(1, StepOrderLink, Scratch{ServiceID: 42})
	tr.Advance(1, StepOrderQuantity, func(s *Scratch) {
		s.Link = "https://example.com/post/1"
	})

	assert.Equal(t, StepOrderQuantity, tr.Step(1))
	sc := tr.Scratch(1)
	assert.Equal(t, int64(42), sc.ServiceID)
	assert.Equal(t, "https://example.com/post/1", sc.Link)
}

func TestClear(t *testing.T) {
	tr := NewTracker(time.Minute)

	tr.Begin(1, StepPassword, Scratch{})
	tr.Clear(1)

	assert.Equal(t, StepIdle, tr.Step(1))
	assert.Equal(t, Scratch{}, tr.Scratch(1))
}

func TestExpiry(t *testing.T) {
	tr := NewTracker(10 * time.Millisecond)

	tr.Begin(1, StepDepositAmount, Scratch{Amount: 100})
	time.Sleep(20 * time.Millisecond)

	// истёкший шаг читается как его отсутствие
	assert.Equal(t, StepIdle, tr.Step(1))
	assert.Equal(t, Scratch{}, tr.Scratch(1))
}

func TestSweep(t *testing.T) {
	tr := NewTracker(10 * time.Millisecond)

	tr.Begin(1, StepDepositAmount, Scratch{})
	tr.Begin(2, StepPassword, Scratch{})
	time.Sleep(20 * time.Millisecond)
	tr.Begin(3, StepOrderLink, Scratch{})

	removed := tr.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, StepOrderLink, tr.Step(3))
}
