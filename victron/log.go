package victron

import (
	"io"

	"github.com/sirupsen/logrus"
)

// discardLogger is the logger used when a Config leaves Logger nil,
// keeping the package silent by default the way a library should be.
var discardLogger = func() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}()
