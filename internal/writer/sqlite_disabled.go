//go:build !sqlite
// +build !sqlite

package writer

import (
	"errors"

	"jmxpoller/internal/model"
	logx "jmxpoller/pkg/logx"
)

func newSQLiteWriter(spec Spec, log logx.Logger) (model.OutputWriter, error) {
	_ = spec
	_ = log
	return nil, errors.New("writer: sqlite writer not built: build with -tags sqlite")
}
