package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectForRole(t *testing.T) {
	assert.Equal(t, "role:admin", SubjectForRole("Admin"))
	assert.Equal(t, "role:customer", SubjectForRole("role:customer"))
	assert.Equal(t, "role:anonymous", SubjectForRole(" "))
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "servicedesk.requests", ObjectName("ServiceDesk", "Requests"))
	assert.Equal(t, "global.resource", ObjectName("", ""))
}

func TestNormalizeAction(t *testing.T) {
	assert.Equal(t, "transition", NormalizeAction(" Transition "))
	assert.Equal(t, "*", NormalizeAction(""))
}
