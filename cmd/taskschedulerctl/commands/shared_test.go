package commands

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskscheduler/core/internal/errs"
)

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, 0, ExitCodeFor(nil))
	assert.Equal(t, 2, ExitCodeFor(errs.ErrInvalidExpression))
	assert.Equal(t, 2, ExitCodeFor(errs.ErrInvalidTimezone))
	assert.Equal(t, 1, ExitCodeFor(errs.ErrScheduleNotFound))
	assert.Equal(t, 1, ExitCodeFor(errs.ErrTemplateNotFound))
	assert.Equal(t, 1, ExitCodeFor(errors.New("some other failure")))
}
