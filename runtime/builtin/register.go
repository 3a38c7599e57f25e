package builtin

import "flowdag/runtime/action"

// RegisterArithmetic registers the always-available add/double_add
// actions the seed scenarios (§8) exercise.
func RegisterArithmetic(reg *action.Registry) {
	reg.Register(NewAddAction())
	reg.Register(NewDoubleAddAction())
}

// RegisterEmbedding registers the text_embedding stub, which needs no
// external configuration.
func RegisterEmbedding(reg *action.Registry) {
	reg.Register(NewEmbeddingAction())
}

// RegisterHTTP registers http_fetch with the given client settings.
func RegisterHTTP(reg *action.Registry, timeoutSeconds, maxRetries, retryWaitMS int) {
	reg.Register(NewHTTPFetchAction(
		secondsToDuration(timeoutSeconds),
		maxRetries,
		millisToDuration(retryWaitMS),
	))
}

// RegisterPostgres opens a connection pool against dsn and registers
// postgres_query, returning the action so callers can Close it on
// shutdown.
func RegisterPostgres(reg *action.Registry, dsn string, maxOpenConns, maxIdleConns, connMaxLifetimeMS int) (*PostgresQueryAction, error) {
	a, err := NewPostgresQueryAction(dsn, maxOpenConns, maxIdleConns, millisToDuration(connMaxLifetimeMS))
	if err != nil {
		return nil, err
	}
	reg.Register(a)
	return a, nil
}
