package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentSetSelected(t *testing.T) {
	c := Component{ID: ComponentHeavy, Selectable: true, Locked: true, Selected: true}
	err := c.SetSelected(false)
	require.ErrorIs(t, err, ErrComponentLocked)
	assert.True(t, c.Selected)

	// Re-affirming the locked value is fine.
	require.NoError(t, c.SetSelected(true))

	c.Locked = false
	require.NoError(t, c.SetSelected(false))
	assert.False(t, c.Selected)
}

func TestRequiredComponentCannotBeDeselected(t *testing.T) {
	c := Component{ID: ComponentApp, Required: true, Selected: true}
	require.ErrorIs(t, c.SetSelected(false), ErrComponentLocked)
	assert.False(t, c.Optional())
}

func TestAbortErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	cleanup := &PermissionError{Path: "/x", Err: errors.New("denied")}
	err := &AbortError{Stage: "download", Cause: cause, RollbackErr: cleanup}

	assert.ErrorIs(t, err, cause)
	var perm *PermissionError
	assert.ErrorAs(t, err, &perm)
	assert.Contains(t, err.Error(), "download failed")
	assert.Contains(t, err.Error(), "rollback incomplete")
}

func TestExecutable(t *testing.T) {
	assert.Equal(t, "uninstall.exe", OSWindows.Executable("uninstall"))
	assert.Equal(t, "uninstall.exe", OSWindows.Executable("uninstall.exe"))
	assert.Equal(t, "uninstall", OSLinux.Executable("uninstall"))
}
