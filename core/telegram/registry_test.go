package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/leadbot/core/telegram/commands"
)

func marker(name string, hit *string) tele.HandlerFunc {
	return func(tele.Context) error {
		*hit = name
		return nil
	}
}

func TestRegistryCallbackLookup(t *testing.T) {
	reg := NewRegistry()
	var hit string

	require.NoError(t, reg.RegisterCallback("start_quiz", marker("start", &hit)))
	require.NoError(t, reg.RegisterCallbackPrefix("quiz_", marker("quiz", &hit)))
	require.NoError(t, reg.RegisterCallbackPrefix("quiz_a_", marker("answer", &hit)))

	h, ok := reg.GetCallback("start_quiz")
	require.True(t, ok)
	require.NoError(t, h(nil))
	assert.Equal(t, "start", hit)

	h, ok = reg.GetCallback("quiz_a_0_1")
	require.True(t, ok)
	require.NoError(t, h(nil))
	assert.Equal(t, "answer", hit)

	h, ok = reg.GetCallback("quiz_x")
	require.True(t, ok)
	require.NoError(t, h(nil))
	assert.Equal(t, "quiz", hit)

	_, ok = reg.GetCallback("unknown")
	assert.False(t, ok)

	assert.Equal(t, []string{"quiz_*", "quiz_a_*", "start_quiz"}, reg.ListCallbacks())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	h := func(tele.Context) error { return nil }

	require.NoError(t, reg.RegisterCallback("k", h))
	assert.Error(t, reg.RegisterCallback("k", h))
	assert.Error(t, reg.RegisterCallback("", h))
	require.NoError(t, reg.RegisterCallbackPrefix("p_", h))
	assert.Error(t, reg.RegisterCallbackPrefix("p_", h))
	assert.Error(t, reg.RegisterCallbackPrefix("x_", nil))
}

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	h := func(tele.Context) error { return nil }

	reg.RegisterCommand("/start", commands.Command{Handler: h, Description: "Start", Aliases: []string{"begin"}})
	reg.RegisterCommand("/stats", commands.Command{Handler: h, Description: "Stats", AdminOnly: true, Hidden: true})
	reg.RegisterCommand("nope", commands.Command{Handler: h, Description: "no slash"})
	reg.RegisterCommand("/start", commands.Command{Handler: h, Description: "dup"})

	assert.Len(t, reg.Commands(), 2)
	assert.Equal(t, []tele.Command{{Text: "/start", Description: "Start"}}, reg.ListCommands(true))
	assert.Len(t, reg.ListCommands(false), 2)

	key, cmd, ok := reg.LookupCommand("/begin")
	require.True(t, ok)
	assert.Equal(t, "/start", key)
	assert.Equal(t, "Start", cmd.Description)

	_, _, ok = reg.LookupCommand("missing")
	assert.False(t, ok)
}

type fakeSetter struct {
	got []interface{}
	err error
}

func (f *fakeSetter) SetCommands(opts ...interface{}) error {
	f.got = opts
	return f.err
}

func TestSetupCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: func(tele.Context) error { return nil }, Description: "Start"})

	setter := &fakeSetter{}
	SetupCommands(setter, reg)
	require.Len(t, setter.got, 1)
	assert.Equal(t, []tele.Command{{Text: "/start", Description: "Start"}}, setter.got[0])

	failing := &fakeSetter{err: errors.New("boom")}
	SetupCommands(failing, reg)
	assert.Len(t, failing.got, 1)

	empty := &fakeSetter{}
	SetupCommands(empty, NewRegistry())
	assert.Nil(t, empty.got)
}
