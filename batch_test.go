package keel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAll(t *testing.T) {
	k := New()

	err := RegisterAll(k,
		NewModel("mailer", newMailSender, WithServices(mailerContract)),
		NewModel("templates", newTemplateEngine, WithServices(templateContract)),
	)
	require.NoError(t, err)

	assert.True(t, k.HasKey("mailer"))
	assert.True(t, k.HasKey("templates"))
}

func TestRegisterAll_StopsAtFirstFailure(t *testing.T) {
	k := New()

	err := RegisterAll(k,
		NewModel("mailer", newMailSender, WithServices(mailerContract)),
		NewModel("mailer", newMailSender, WithServices(mailerContract)),
		NewModel("templates", newTemplateEngine, WithServices(templateContract)),
	)

	assert.ErrorIs(t, err, ErrDuplicateKeySentinel)
	assert.True(t, k.HasKey("mailer"))
	assert.False(t, k.HasKey("templates"))
}

func TestRegisterTypedComponents(t *testing.T) {
	k := New()

	newEngine := func(Arguments) (*templateEngine, error) { return &templateEngine{}, nil }

	err := RegisterTypedComponents(k,
		TypedComponent("primary", newEngine),
		TypedComponent("replica", newEngine, Transient()),
	)
	require.NoError(t, err)

	assert.Equal(t, LifecycleSingleton, k.Handler("primary").Model().Lifecycle())
	assert.Equal(t, LifecycleTransient, k.Handler("replica").Model().Lifecycle())

	primary, err := Resolve[*templateEngine](k)
	require.NoError(t, err)

	first, err := ResolveNamed[*templateEngine](k, "primary")
	require.NoError(t, err)
	assert.Same(t, first, primary)
}
