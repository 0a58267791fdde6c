package service

// Kind 区分业务错误类别，handler 据此映射 HTTP 状态码。
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindAuth
	KindForbidden
	KindNotFound
	KindState
)

// Error 是在失败位置构造的结构化业务错误。Field 非空时表示字段级校验错误。
type Error struct {
	Kind  Kind
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Msg
	}
	return e.Msg
}

func validation(field, msg string) *Error { return &Error{Kind: KindValidation, Field: field, Msg: msg} }

// 业务层通用错误。
var (
	ErrDuplicateAccount   = &Error{Kind: KindConflict, Field: "email", Msg: "email already registered"}
	ErrWeakPassword       = &Error{Kind: KindValidation, Field: "password", Msg: "password must be longer than 6 characters"}
	ErrInvalidCredentials = &Error{Kind: KindAuth, Msg: "invalid email or password"}
	ErrUnauthenticated    = &Error{Kind: KindAuth, Msg: "authentication required"}
	ErrForbidden          = &Error{Kind: KindForbidden, Msg: "not allowed to modify this resource"}
	ErrPostNotFound       = &Error{Kind: KindNotFound, Msg: "post not found"}
	ErrCommentNotFound    = &Error{Kind: KindNotFound, Msg: "comment not found"}
	ErrAlreadyLiked       = &Error{Kind: KindConflict, Msg: "post already liked"}
	ErrNotLiked           = &Error{Kind: KindState, Msg: "post not liked"}
	ErrEmptyMessage       = &Error{Kind: KindValidation, Field: "message", Msg: "message is required"}
)
