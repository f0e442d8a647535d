package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/config"
	"github.com/Liiesl/EasyScanlate/pkg/probe"
)

func defaults() []Component {
	return Default(config.Defaults(config.OSLinux), 1024)
}

func TestPlanHeavyAbsent(t *testing.T) {
	p := NewPlan(defaults(), probe.Result{Present: false})

	heavy := Find(p.Components(), common.ComponentHeavy)
	require.NotNil(t, heavy)
	assert.True(t, heavy.Selected)
	assert.True(t, heavy.Locked)

	adv := p.Advisory()
	require.NotNil(t, adv)
	assert.Contains(t, adv.Body, "2.7 GiB")
}

func TestPlanHeavyPresent(t *testing.T) {
	p := NewPlan(defaults(), probe.Result{Present: true})

	heavy := Find(p.Components(), common.ComponentHeavy)
	require.NotNil(t, heavy)
	assert.False(t, heavy.Selected)
	assert.False(t, heavy.Locked)
	assert.Nil(t, p.Advisory())

	// Opting back in forces a re-fetch.
	require.NoError(t, p.Select([]common.ComponentID{common.ComponentHeavy}))
	assert.True(t, p.Selected(common.ComponentHeavy))
}

func TestPlanLockedHeavyCannotBeDeselected(t *testing.T) {
	p := NewPlan(defaults(), probe.Result{Present: false})

	err := p.Select([]common.ComponentID{common.ComponentShortcuts})
	assert.ErrorIs(t, err, common.ErrComponentLocked)
	assert.True(t, p.Selected(common.ComponentHeavy))
}

func TestPlanAppAlwaysSelected(t *testing.T) {
	for _, present := range []bool{true, false} {
		p := NewPlan(defaults(), probe.Result{Present: present})
		app := Find(p.Components(), common.ComponentApp)
		require.NotNil(t, app)
		assert.True(t, app.Selected)
		assert.True(t, app.Locked)
		assert.False(t, app.Optional())
	}
}

func TestPlanSelectOptional(t *testing.T) {
	p := NewPlan(defaults(), probe.Result{Present: true})

	require.NoError(t, p.Select([]common.ComponentID{common.ComponentAssociation}))
	assert.Equal(t,
		[]common.ComponentID{common.ComponentApp, common.ComponentAssociation},
		p.SelectedIDs())
}

func TestPlanSelectUnknown(t *testing.T) {
	p := NewPlan(defaults(), probe.Result{})
	assert.Error(t, p.Select([]common.ComponentID{"nope"}))
}

func TestPlanFrozen(t *testing.T) {
	p := NewPlan(defaults(), probe.Result{})
	p.Freeze()
	assert.Panics(t, func() { _ = p.Select(nil) })
}

func TestPlanDoesNotAliasInput(t *testing.T) {
	in := defaults()
	p := NewPlan(in, probe.Result{Present: true})
	require.NoError(t, p.Select(nil))
	assert.True(t, IsSelected(in, common.ComponentShortcuts))
}

func TestTotalSize(t *testing.T) {
	list := []Component{
		{ID: "a", EstimatedSizeBytes: 10, Selected: true},
		{ID: "b", EstimatedSizeBytes: 20},
		{ID: "c", EstimatedSizeBytes: 5, Selected: true},
	}
	assert.Equal(t, int64(15), TotalSize(list))
}
