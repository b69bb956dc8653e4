package lending

// Result is the tagged outcome of an entry point: either a value or a code.
type Result[T any] struct {
	OK    bool
	Value T
	Code  Code
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](value T) Result[T] {
	return Result[T]{OK: true, Value: value, Code: CodeOK}
}

// Fail wraps err, tagging it with its lending code.
func Fail[T any](err error) Result[T] {
	return Result[T]{Code: CodeOf(err), Err: err}
}

// ResultOf converts a Go-style (value, error) pair into a Result.
func ResultOf[T any](value T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(value)
}

// Unwrap returns the value and error in Go's conventional form.
func (r Result[T]) Unwrap() (T, error) {
	if r.OK {
		return r.Value, nil
	}
	if r.Err != nil {
		return r.Value, r.Err
	}
	if sentinel := ErrorForCode(r.Code); sentinel != nil {
		return r.Value, sentinel
	}
	return r.Value, newError(r.Code, "lending engine: "+r.Code.String())
}
