package pipeline

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// CallOption adjusts a single entry-point call.
type CallOption func(*callOptions)

type callOptions struct {
	origin string
}

// WithOrigin sets the lib detail tag instead of the captured call site.
func WithOrigin(tag string) CallOption {
	return func(o *callOptions) { o.origin = tag }
}

// resolveOrigin must be called directly from an exported entry point so the
// captured frame is the entry point's caller.
func resolveOrigin(opts []CallOption) string {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.origin != "" {
		return o.origin
	}
	return callSite(2)
}

// callSite formats the frame skip levels above its caller as
// pkg##func##file##line.
func callSite(skip int) string {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return ""
	}
	name := ""
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = fn.Name()
	}
	pkg, fn := splitFuncName(name)
	return fmt.Sprintf("%s##%s##%s##%d", pkg, fn, filepath.Base(file), line)
}

// splitFuncName splits "example.com/a/pkg.Type.Method" into the package path
// and the rest.
func splitFuncName(name string) (pkg, fn string) {
	slash := strings.LastIndex(name, "/")
	dot := strings.Index(name[slash+1:], ".")
	if dot < 0 {
		return name, ""
	}
	return name[:slash+1+dot], name[slash+1+dot+1:]
}
