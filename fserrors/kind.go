package fserrors

// Kind is a named class of failure, modeled on disko's DiskoError: a string
// constant that is itself an error, and that can be enriched with a message
// or a wrapped cause without losing its identity for errors.Is comparisons.
type Kind string

const (
	InvalidArgument Kind = "invalid argument"
	NotFound        Kind = "no such file or directory"
	Exists          Kind = "file exists"
	NotEmpty        Kind = "directory not empty"
	PermissionDenied Kind = "permission denied"
	NoSpace         Kind = "no space left on device"
	WrongType       Kind = "inappropriate type for operation"
	IOError         Kind = "input/output error"
	CorruptImage    Kind = "structure needs cleaning"
)

func (k Kind) Error() string {
	return string(k)
}

func (k Kind) WithMessage(message string) DriverError {
	return wrappedError{message: k.Error() + ": " + message, kind: k, cause: k}
}

func (k Kind) WrapError(err error) DriverError {
	return wrappedError{message: k.Error() + ": " + err.Error(), kind: k, cause: err}
}

func (k Kind) Unwrap() error {
	return nil
}
