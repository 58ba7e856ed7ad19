package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNATSKey(t *testing.T) {
	t.Parallel()

	valid := regexp.MustCompile(`^[-_=.a-zA-Z0-9]+$`)

	for _, key := range []string{"app/users", "app id/prefix with spaces", "app/ü/订单"} {
		encoded := natsKey(key)
		assert.Regexp(t, valid, encoded)
		assert.NotEqual(t, key, encoded)
	}

	assert.NotEqual(t, natsKey("app/users"), natsKey("app/orders"))
}
