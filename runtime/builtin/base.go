// Package builtin holds the concrete action types shipped with the
// engine: arithmetic actions exercised by the seed scenarios (§8), an
// HTTP fetch action grounded on the teacher's http plugin, and a Postgres
// query action grounded on its postgres plugin.
package builtin

import "time"

// base implements the Name/Cache/Version third of the Action contract
// (§3.3) shared by every concrete action here; NewInput and the
// execution method are supplied by the embedding type.
type base struct {
	name    string
	cache   bool
	version *int
}

func (b base) Name() string  { return b.name }
func (b base) Cache() bool   { return b.cache }
func (b base) Version() *int { return b.version }

func intp(v int) *int { return &v }

func secondsToDuration(s int) time.Duration { return time.Duration(s) * time.Second }
func millisToDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
