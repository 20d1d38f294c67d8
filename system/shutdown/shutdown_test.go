package shutdown

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownClosesInReverseOrder(t *testing.T) {
	var order []string
	closer := func(name string, err error) Closer {
		return Closer{Name: name, Close: func() error {
			order = append(order, name)
			return err
		}}
	}

	Shutdown(
		closer("db", nil),
		Closer{Name: "noop"},
		closer("mqtt", errors.New("broker gone")),
		closer("metrics", nil),
	)
	assert.Equal(t, []string{"metrics", "mqtt", "db"}, order)
}

func TestShutdownWithErrorExits(t *testing.T) {
	code := -1
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = os.Exit })

	closed := false
	ShutdownWithError(errors.New("boom"), "fatal", Closer{Name: "db", Close: func() error {
		closed = true
		return nil
	}})
	assert.True(t, closed)
	assert.Equal(t, 1, code)
}
