//go:build ruleguard

// Package gorules defines custom linter rules for eegstream.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo detects the manual Add/Done goroutine pattern.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done pattern").
		Suggest("$wg.Go(func() { $body })")
}

// TimeSince prefers time.Since over subtracting from time.Now.
func TimeSince(m dsl.Matcher) {
	m.Match(`time.Now().Sub($t)`).
		Report("use time.Since($t)").
		Suggest("time.Since($t)")
}

// LoggerErrorField keeps errors as error fields so handlers can scrub them.
func LoggerErrorField(m dsl.Matcher) {
	m.Import("github.com/eegstream/eegstream-go/internal/logger")

	m.Match(`logger.String("error", $err.Error())`).
		Where(m["err"].Type.Implements("error")).
		Report("use logger.Error($err)").
		Suggest("logger.Error($err)")
}

// StdErrorsNew flags plain errors.New in packages that should build
// categorised errors. Sentinels use errors.NewStd from internal/errors.
func StdErrorsNew(m dsl.Matcher) {
	m.Match(`errors.New($msg)`).
		Where(m.File().Imports("errors") && m["msg"].Type.Is("string") &&
			!m.File().PkgPath.Matches(`/internal/errors$`)).
		Report("use the internal/errors builder or errors.NewStd for sentinels")
}

// BlockDataAlias flags storing a block row without copying. Consumers
// reuse blocks after Process returns.
func BlockDataAlias(m dsl.Matcher) {
	m.Import("github.com/eegstream/eegstream-go/internal/acqcore")

	m.Match(`$dst = $b.Row($i)`, `$dst = append($dst, $b.Row($i))`).
		Where(m["b"].Type.Is("*acqcore.SampleBlock")).
		Report("block rows are reused after Process, copy with slices.Clone($b.Row($i))")
}
