package parser

import (
	"testing"

	"github.com/NotCoffee418/p1_mini/pkg/obis"
	"github.com/NotCoffee418/p1_mini/pkg/telegram"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type dispatch struct {
	code  obis.Code
	value float64
}

type recorder struct {
	calls []dispatch
}

func (r *recorder) Dispatch(code obis.Code, value float64) bool {
	r.calls = append(r.calls, dispatch{code, value})
	return true
}

func testEntry() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

func loadBuffer(t *testing.T, data []byte, crcPos int) *telegram.Buffer {
	t.Helper()
	buf := telegram.NewBuffer(len(data) + 16)
	for _, b := range data {
		require.NoError(t, buf.Append(b))
	}
	buf.SetCRCPosition(crcPos)
	return buf
}

func never() bool { return false }
func always() bool { return true }
