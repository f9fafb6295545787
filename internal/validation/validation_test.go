package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sampleRequest struct {
	Username string `validate:"required,platformusername"`
	Email    string `validate:"required,platformemail"`
	Age      int    `validate:"required,min=1,max=120"`
}

func TestValidateStruct(t *testing.T) {
	valid := sampleRequest{Username: "alice_01", Email: "a@x.io", Age: 24}
	assert.Empty(t, ValidateStruct(valid))

	badEmail := sampleRequest{Username: "alice_01", Email: "not-an-email", Age: 24}
	assert.Contains(t, ValidateStruct(badEmail), "email")

	badUsername := sampleRequest{Username: "a!", Email: "a@x.io", Age: 24}
	assert.NotEmpty(t, ValidateStruct(badUsername))
}

func TestIsSuspicious(t *testing.T) {
	assert.True(t, IsSuspicious("<script>alert(1)</script>"))
	assert.True(t, IsSuspicious("javascript:alert(1)"))
	assert.True(t, IsSuspicious(`<img src=x onerror=alert(1)>`))
	assert.True(t, IsSuspicious(strings.Repeat("a", 150)))
	assert.False(t, IsSuspicious("a perfectly normal description of a photograph"))
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 4, WordCount("the quick  brown\tfox"))
	assert.Equal(t, 0, WordCount("   "))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "alert(1)", Sanitize("<script>alert(1)</script>"))
}
