package keel

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

func TestNew(t *testing.T) {
	k := New(WithName("root"))

	assert.Equal(t, "root", k.Name())
	assert.Nil(t, k.Parent())
	assert.Empty(t, k.Children())
	assert.Empty(t, k.Handlers())
}

func TestNew_DefaultNamesAreUnique(t *testing.T) {
	a, b := New(), New()

	assert.NotEqual(t, a.Name(), b.Name())
}

func TestRegister(t *testing.T) {
	k := New()

	h := registerTemplateEngine(t, k, "templates")

	assert.Equal(t, "templates", h.Key())
	assert.Same(t, k, h.Kernel())
	assert.True(t, k.HasKey("templates"))
	assert.True(t, k.HasComponent(templateContract))
	assert.Equal(t, []*Handler{h}, k.Handlers())
}

func TestRegister_DuplicateKey(t *testing.T) {
	k := New()
	registerTemplateEngine(t, k, "templates")

	_, err := k.Register(NewModel("templates", newTemplateEngine, WithServices(templateContract)))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKeySentinel)
	assert.Contains(t, err.Error(), "templates")
}

func TestRegister_SameKeyInChildIsAllowed(t *testing.T) {
	parent, child := New(), New()
	require.NoError(t, parent.AddChildKernel(child))

	registerTemplateEngine(t, parent, "templates")
	registerTemplateEngine(t, child, "templates")

	assert.Len(t, parent.Handlers(), 1)
	assert.Len(t, child.Handlers(), 1)
}

func TestRegister_InvalidModels(t *testing.T) {
	tests := []struct {
		name  string
		model *ComponentModel
	}{
		{"nil model", nil},
		{"empty key", NewModel("", newMailSender, WithServices(mailerContract))},
		{"nil activator", NewModel("mailer", nil, WithServices(mailerContract))},
		{"no services", NewModel("mailer", newMailSender)},
		{"zero pool", NewModel("mailer", newMailSender, WithServices(mailerContract), Pooled(0))},
		{"custom without factory", NewModel("mailer", newMailSender, WithServices(mailerContract), WithLifestyle(nil))},
		{"unknown lifecycle", NewModel("mailer", newMailSender, WithServices(mailerContract), func(m *ComponentModel) {
			m.lifecycle = "forever"
		})},
		{"unnamed dependency", NewModel("mailer", newMailSender, WithServices(mailerContract), DependsOn(Inject[TemplateEngine]("")))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := New()

			_, err := k.Register(tt.model)

			var kerr *Error
			require.ErrorAs(t, err, &kerr)
			assert.Equal(t, CodeInvalidModel, kerr.Code)
			assert.Empty(t, k.Handlers())
		})
	}
}

func TestRegister_FiresRegisteredListener(t *testing.T) {
	k := New()

	var keys []string
	unsubscribe := k.Subscribe(HierarchyListener{
		Registered: func(h *Handler) { keys = append(keys, h.Key()) },
	})

	registerMailSender(t, k, "mailer")
	unsubscribe()
	registerTemplateEngine(t, k, "templates")

	assert.Equal(t, []string{"mailer"}, keys)
}

func TestResolve_NotFound(t *testing.T) {
	k := New()

	_, err := k.Resolve(mailerContract)
	assert.ErrorIs(t, err, ErrServiceNotFoundSentinel)

	_, err = k.ResolveKey("mailer")
	assert.ErrorIs(t, err, ErrServiceNotFoundSentinel)

	_, err = k.ResolveRequest(t.Context(), Request{})
	assert.ErrorIs(t, err, ErrServiceNotFoundSentinel)
}

func TestResolveNamed_ContractMismatch(t *testing.T) {
	k := New()
	registerMailSender(t, k, "mailer")

	_, err := k.ResolveNamed(templateContract, "mailer")
	assert.ErrorIs(t, err, ErrTypeMismatchSentinel)

	instance, err := k.ResolveNamed(mailerContract, "mailer")
	require.NoError(t, err)
	assert.IsType(t, &mailSender{}, instance)
}

// =============================================================================
// HIERARCHY
// =============================================================================

func TestAddChildKernel(t *testing.T) {
	parent, child := New(), New()

	require.NoError(t, parent.AddChildKernel(child))

	assert.Same(t, parent, child.Parent())
	assert.Equal(t, []*Kernel{child}, parent.Children())
}

func TestAddChildKernel_SameParentIsNoOp(t *testing.T) {
	parent, child := New(), New()

	added := 0
	child.Subscribe(HierarchyListener{AddedAsChild: func(*Kernel) { added++ }})

	require.NoError(t, parent.AddChildKernel(child))
	require.NoError(t, parent.AddChildKernel(child))

	assert.Len(t, parent.Children(), 1)
	assert.Equal(t, 1, added)
}

func TestAddChildKernel_ToTwoParentsFails(t *testing.T) {
	first, second, child := New(), New(), New()
	require.NoError(t, first.AddChildKernel(child))

	err := second.AddChildKernel(child)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHierarchySentinel)
	assert.Contains(t, err.Error(), "use the RemoveChildKernel and AddChildKernel methods together")
	assert.Same(t, first, child.Parent())
	assert.Empty(t, second.Children())
}

func TestAddChildKernel_MoveBetweenParents(t *testing.T) {
	first, second, child := New(), New(), New()
	require.NoError(t, first.AddChildKernel(child))

	first.RemoveChildKernel(child)
	require.NoError(t, second.AddChildKernel(child))

	assert.Same(t, second, child.Parent())
	assert.Empty(t, first.Children())
}

func TestAddChildKernel_RejectsIllegalShapes(t *testing.T) {
	root, mid, leaf := New(), New(), New()
	require.NoError(t, root.AddChildKernel(mid))
	require.NoError(t, mid.AddChildKernel(leaf))

	assert.ErrorIs(t, root.AddChildKernel(nil), ErrHierarchySentinel)
	assert.ErrorIs(t, root.AddChildKernel(root), ErrHierarchySentinel)
	assert.ErrorIs(t, leaf.AddChildKernel(root), ErrHierarchySentinel)
	assert.ErrorIs(t, mid.AddChildKernel(root), ErrHierarchySentinel)
}

func TestAddChildKernel_ConcurrentMutualAddsNeverCycle(t *testing.T) {
	for range 100 {
		a, b := New(), New()

		var g errgroup.Group
		var errA, errB error
		g.Go(func() error {
			errA = a.AddChildKernel(b)

			return nil
		})
		g.Go(func() error {
			errB = b.AddChildKernel(a)

			return nil
		})
		require.NoError(t, g.Wait())

		// Exactly one link wins; the other is rejected as an ancestor
		assert.True(t, (errA == nil) != (errB == nil), "a: %v, b: %v", errA, errB)
		assert.False(t, a.Parent() == b && b.Parent() == a)
	}
}

func TestRemoveChildKernel_NotAChildIsNoOp(t *testing.T) {
	parent, other, child := New(), New(), New()
	require.NoError(t, parent.AddChildKernel(child))

	removed := 0
	child.Subscribe(HierarchyListener{RemovedAsChild: func(*Kernel) { removed++ }})

	other.RemoveChildKernel(child)
	other.RemoveChildKernel(nil)

	assert.Same(t, parent, child.Parent())
	assert.Zero(t, removed)
}

func TestHierarchyEvents_Order(t *testing.T) {
	parent, child := New(), New()

	var (
		events   []string
		subjects []*Kernel
	)

	child.Subscribe(HierarchyListener{
		AddedAsChild: func(k *Kernel) {
			events = append(events, "added")
			subjects = append(subjects, k)
		},
		RemovedAsChild: func(k *Kernel) {
			events = append(events, "removed")
			subjects = append(subjects, k)
		},
	})

	require.NoError(t, parent.AddChildKernel(child))
	parent.RemoveChildKernel(child)
	require.NoError(t, parent.AddChildKernel(child))
	parent.RemoveChildKernel(child)

	assert.Equal(t, []string{"added", "removed", "added", "removed"}, events)
	for _, s := range subjects {
		assert.Same(t, child, s)
	}
}

func TestHierarchyEvents_Unsubscribe(t *testing.T) {
	parent, child := New(), New()

	count := 0
	unsubscribe := child.Subscribe(HierarchyListener{AddedAsChild: func(*Kernel) { count++ }})

	unsubscribe()
	unsubscribe()
	require.NoError(t, parent.AddChildKernel(child))

	assert.Zero(t, count)
	assert.Zero(t, child.listeners.len())
}

func TestRemoveChildKernel_StopsSeeingParentComponents(t *testing.T) {
	parent, child := New(), New()
	require.NoError(t, parent.AddChildKernel(child))
	registerMailSender(t, parent, "mailer")

	assert.True(t, child.HasComponent(mailerContract))

	parent.RemoveChildKernel(child)

	assert.False(t, child.HasComponent(mailerContract))
	assert.False(t, child.HasKey("mailer"))

	_, err := child.Resolve(mailerContract)
	assert.ErrorIs(t, err, ErrServiceNotFoundSentinel)
}

// =============================================================================
// VISIBILITY
// =============================================================================

func TestChildKernelFindsAndCreatesParentComponent(t *testing.T) {
	parent, child := New(), New()
	require.NoError(t, parent.AddChildKernel(child))
	registerTemplateEngine(t, parent, "templates")

	assert.True(t, child.HasComponent(templateContract))

	instance, err := child.Resolve(templateContract)
	require.NoError(t, err)
	assert.IsType(t, &templateEngine{}, instance)
}

func TestParentKernelDoesNotFindChildComponent(t *testing.T) {
	parent, child := New(), New()
	require.NoError(t, parent.AddChildKernel(child))
	registerTemplateEngine(t, child, "templates")

	assert.False(t, parent.HasComponent(templateContract))

	_, err := parent.Resolve(templateContract)
	assert.ErrorIs(t, err, ErrServiceNotFoundSentinel)
}

func TestChildKernelOverloadsParentKernel_ByKey(t *testing.T) {
	parent, child := New(), New()
	require.NoError(t, parent.AddChildKernel(child))

	registerTemplateEngine(t, parent, "templates")
	registerTemplateEngine(t, child, "templates")

	fromParent, err := parent.ResolveKey("templates")
	require.NoError(t, err)
	fromChild, err := child.ResolveKey("templates")
	require.NoError(t, err)

	assert.NotSame(t, fromParent, fromChild)
	assert.Same(t, child.Handler("templates"), child.localHandler("templates"))
}

func TestChildKernelOverloadsParentKernel_ByContract(t *testing.T) {
	parent, child := New(), New()
	require.NoError(t, parent.AddChildKernel(child))

	registerTemplateEngine(t, parent, "parent-templates")
	registerTemplateEngine(t, child, "child-templates")

	fromChild, err := child.Resolve(templateContract)
	require.NoError(t, err)
	childOwn, err := child.ResolveKey("child-templates")
	require.NoError(t, err)

	assert.Same(t, childOwn, fromChild)
}

func TestChildKernelOverloadsParentKernel_UnsatisfiedChildIsNotSkipped(t *testing.T) {
	parent, child := New(), New()
	require.NoError(t, parent.AddChildKernel(child))

	registerTemplateEngine(t, parent, "parent-templates")
	registerTemplateEngine(t, child, "child-templates", DependsOn(Inject[MailSender]("mailer")))

	_, err := child.Resolve(templateContract)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsatisfiedDependencySentinel)
	assert.Contains(t, err.Error(), "'child-templates'")
	assert.Contains(t, err.Error(), "'mailer'")

	registerMailSender(t, parent, "mailer")
	assert.Equal(t, Valid, child.Handler("child-templates").State())

	fromChild, err := child.Resolve(templateContract)
	require.NoError(t, err)
	childOwn, err := child.ResolveKey("child-templates")
	require.NoError(t, err)
	assert.Same(t, childOwn, fromChild)
}

func TestChildKernelOverloadsParentKernel_NestedDependency(t *testing.T) {
	parent, child := New(), New()
	require.NoError(t, parent.AddChildKernel(child))

	registerMailSender(t, parent, "mailer")
	registerTemplateEngine(t, parent, "parent-templates")
	registerSpamService(t, parent, "spam", Transient())
	registerTemplateEngine(t, child, "child-templates", DependsOn(InjectKey("missing", "missing")))

	_, err := child.ResolveKey("spam")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsatisfiedDependencySentinel)
	assert.Contains(t, err.Error(), "'child-templates'")

	_, err = parent.ResolveKey("spam")
	assert.NoError(t, err)
}

func TestSiblingKernelsDoNotSeeEachOther(t *testing.T) {
	parent, left, right := New(), New(), New()
	require.NoError(t, parent.AddChildKernel(left))
	require.NoError(t, parent.AddChildKernel(right))

	registerTemplateEngine(t, parent, "templates")
	registerMailSender(t, left, "mailer")

	assert.True(t, left.HasComponent(mailerContract))
	assert.False(t, right.HasComponent(mailerContract))

	_, err := right.Resolve(mailerContract)
	assert.ErrorIs(t, err, ErrServiceNotFoundSentinel)

	// Both siblings share the parent's singleton
	a, err := left.Resolve(templateContract)
	require.NoError(t, err)
	b, err := right.Resolve(templateContract)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestSiblingKernelsWithSameKey(t *testing.T) {
	parent, left, right := New(), New(), New()
	require.NoError(t, parent.AddChildKernel(left))
	require.NoError(t, parent.AddChildKernel(right))

	registerTemplateEngine(t, left, "templates")
	registerTemplateEngine(t, right, "templates")

	a, err := left.ResolveKey("templates")
	require.NoError(t, err)
	b, err := right.ResolveKey("templates")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

func TestInspect(t *testing.T) {
	parent, child := New(WithName("parent")), New()
	require.NoError(t, parent.AddChildKernel(child))

	registerMailSender(t, parent, "mailer")
	registerTemplateEngine(t, parent, "templates")
	registerSpamService(t, parent, "spam",
		WithGroup("mail"),
		WithMetadata("owner", "growth"),
	)

	want := ComponentInfo{
		Key:          "spam",
		Kernel:       "parent",
		Services:     []string{spamContract.String()},
		Lifecycle:    "singleton",
		Dependencies: []string{"mailer", "templates"},
		Interceptors: []string{},
		State:        "valid",
		Groups:       []string{"mail"},
		Metadata:     map[string]string{"owner": "growth"},
	}
	if diff := cmp.Diff(want, child.Inspect("spam")); diff != "" {
		t.Errorf("Inspect() mismatch (-want +got):\n%s", diff)
	}

	_, err := child.ResolveKey("spam")
	require.NoError(t, err)
	assert.True(t, child.Inspect("spam").Cached)

	missing := child.Inspect("nope")
	assert.Equal(t, "nope", missing.Key)
	assert.Empty(t, missing.State)
}

func TestValidate(t *testing.T) {
	t.Run("valid graph", func(t *testing.T) {
		k := New()
		registerMailSender(t, k, "mailer")
		registerTemplateEngine(t, k, "templates")
		registerSpamService(t, k, "spam")

		assert.NoError(t, k.Validate())
	})

	t.Run("waiting component", func(t *testing.T) {
		k := New()
		registerSpamService(t, k, "spam")

		err := k.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsatisfiedDependencySentinel)
		assert.Contains(t, err.Error(), "'spam'")
		assert.Contains(t, err.Error(), "'mailer'")
	})

	t.Run("cycle", func(t *testing.T) {
		k := New()
		_, err := k.Register(NewModel("a", newMailSender, WithServices(mailerContract), DependsOn(InjectKey("b", "b"))))
		require.NoError(t, err)
		_, err = k.Register(NewModel("b", newMailSender, WithServices(mailerContract), DependsOn(InjectKey("a", "a"))))
		require.NoError(t, err)

		err = k.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCircularDependencySentinel)
		assert.Contains(t, err.Error(), "a -> b -> a")
	})

	t.Run("concurrent calls leave the model untouched", func(t *testing.T) {
		k := New()
		registerMailSender(t, k, "mailer")
		registerTemplateEngine(t, k, "templates")
		_, err := k.Register(NewModel("upper", newUpperInterceptor, WithServices(greeterContract)))
		require.NoError(t, err)

		h := registerSpamService(t, k, "spam",
			DependsOn(InjectValue("subject", "hello")),
			WithInterceptors(InterceptorForKey("upper")),
		)
		deps := h.model.dependencies
		require.Greater(t, cap(deps), len(deps))

		var g errgroup.Group
		for range 8 {
			g.Go(k.Validate)
		}
		require.NoError(t, g.Wait())

		for _, spare := range deps[len(deps):cap(deps)] {
			assert.Empty(t, spare.Name())
		}
	})
}

// =============================================================================
// DISPOSAL
// =============================================================================

func TestDispose_ReverseDependencyOrder(t *testing.T) {
	k := New()

	var log []string
	register := func(key string, deps ...Dependency) {
		_, err := k.Register(NewModel(key, func(Arguments) (any, error) {
			return &disposable{name: key, log: &log}, nil
		}, WithServices(NamedContract(key)), DependsOn(deps...)))
		require.NoError(t, err)
	}

	register("db")
	register("repo", InjectKey("db", "db"))
	register("svc", InjectKey("repo", "repo"))

	_, err := k.ResolveKey("svc")
	require.NoError(t, err)

	require.NoError(t, k.Dispose())
	assert.Equal(t, []string{"svc", "repo", "db"}, log)
}

func TestDispose_ChildrenFirst(t *testing.T) {
	parent, child := New(), New()
	require.NoError(t, parent.AddChildKernel(child))

	var log []string
	for _, k := range []*Kernel{parent, child} {
		name := "parent"
		if k == child {
			name = "child"
		}

		_, err := RegisterValue(k, name, &disposable{name: name, log: &log})
		require.NoError(t, err)
		_, err = k.ResolveKey(name)
		require.NoError(t, err)
	}

	removed := 0
	child.Subscribe(HierarchyListener{RemovedAsChild: func(*Kernel) { removed++ }})

	require.NoError(t, parent.Dispose())

	assert.Equal(t, []string{"child", "parent"}, log)
	assert.Nil(t, child.Parent())
	assert.Empty(t, parent.Children())
	assert.Equal(t, 1, removed)
}

func TestDispose_AggregatesErrors(t *testing.T) {
	k := New()

	errA := errors.New("a failed")
	errB := errors.New("b failed")

	_, err := RegisterValue(k, "a", &disposable{name: "a", err: errA})
	require.NoError(t, err)
	_, err = RegisterValue(k, "b", &disposable{name: "b", err: errB})
	require.NoError(t, err)

	for _, key := range []string{"a", "b"} {
		_, err := k.ResolveKey(key)
		require.NoError(t, err)
	}

	err = k.Dispose()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestDispose_RejectsFurtherUse(t *testing.T) {
	parent, k := New(), New()
	registerMailSender(t, k, "mailer")

	require.NoError(t, k.Dispose())
	require.NoError(t, k.Dispose())

	_, err := k.Resolve(mailerContract)
	assert.ErrorIs(t, err, ErrKernelDisposed)

	_, err = k.Register(NewModel("other", newMailSender, WithServices(mailerContract)))
	assert.ErrorIs(t, err, ErrKernelDisposed)

	assert.ErrorIs(t, parent.AddChildKernel(k), ErrKernelDisposed)
	assert.Empty(t, k.Handlers())
}
