package keel

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContractOf(t *testing.T) {
	c := ContractOf[TemplateEngine]()

	assert.Equal(t, "keel.TemplateEngine", c.Name())
	assert.Equal(t, reflect.TypeFor[TemplateEngine](), c.Type())
	assert.False(t, c.IsOpen())
	assert.False(t, c.IsZero())
	assert.Equal(t, c, ContractOf[TemplateEngine]())
}

func TestContract_Kinds(t *testing.T) {
	named := NamedContract("renderer")
	open := OpenContract("Repository[T]")

	assert.Nil(t, named.Type())
	assert.False(t, named.IsOpen())
	assert.True(t, open.IsOpen())
	assert.NotEqual(t, named, NamedContract("other"))
	assert.NotEqual(t, OpenContract("renderer"), named)

	var zero Contract
	assert.True(t, zero.IsZero())
	assert.Equal(t, "<none>", zero.String())
}

func TestContract_Satisfies(t *testing.T) {
	tests := []struct {
		name   string
		have   Contract
		target Contract
		want   bool
	}{
		{"equal", templateContract, templateContract, true},
		{"implementation satisfies interface", ContractOf[*templateEngine](), templateContract, true},
		{"interface does not satisfy implementation", templateContract, ContractOf[*templateEngine](), false},
		{"unrelated interfaces", templateContract, mailerContract, false},
		{"wider interface satisfies narrower", ContractOf[namedInterceptor](), InterceptorContract, true},
		{"named equal", NamedContract("x"), NamedContract("x"), true},
		{"named vs typed", NamedContract("keel.TemplateEngine"), templateContract, false},
		{"concrete target", ContractOf[*templateEngine](), ContractOf[*mailSender](), false},
		{"any target", ContractOf[*mailSender](), ContractOf[any](), true},
		{"context", ContractOf[context.Context](), ContractOf[context.Context](), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.have.Satisfies(tt.target))
		})
	}
}

func TestRequest_String(t *testing.T) {
	assert.Equal(t, "mailer", Request{Key: "mailer"}.String())
	assert.Equal(t, "keel.MailSender", Request{Contract: mailerContract}.String())
	assert.Equal(t, "keel.MailSender[key=mailer]", Request{Key: "mailer", Contract: mailerContract}.String())
	assert.Equal(t, "<none>", Request{}.String())
}
