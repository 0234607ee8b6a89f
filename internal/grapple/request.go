package grapple

import "github.com/fieldrobotics/grapple-can-gateway/internal/bitio"

// Request is the generic request/ack sum type from spec.md §4.6: the same
// logical operation has two wire shapes, R (request) and A (ack),
// discriminated by the identifier's ack_flag rather than an in-band tag.
type Request[R any, A any] struct {
	IsAck bool
	Req   R
	Ack   A
}

// NewRequest builds the request-shape variant.
func NewRequest[R any, A any](r R) Request[R, A] {
	return Request[R, A]{Req: r}
}

// NewAck builds the ack-shape variant.
func NewAck[R any, A any](a A) Request[R, A] {
	return Request[R, A]{IsAck: true, Ack: a}
}

// EncodeRequest writes v's active shape and sets ctx.AckFlag accordingly.
// validateReq runs only against the request shape — spec.md §4.6: "acks
// are assumed well-formed."
func EncodeRequest[R any, A any](
	w *bitio.Writer,
	ctx *Context,
	v Request[R, A],
	validateReq func(R) error,
	marshalReq func(*bitio.Writer, R) error,
	marshalAck func(*bitio.Writer, A) error,
) error {
	if v.IsAck {
		ctx.AckFlag = true
		return marshalAck(w, v.Ack)
	}
	ctx.AckFlag = false
	if validateReq != nil {
		if err := validateReq(v.Req); err != nil {
			return err
		}
	}
	return marshalReq(w, v.Req)
}

// DecodeRequest reads ctx.AckFlag and dispatches to the matching unmarshal function.
func DecodeRequest[R any, A any](
	r *bitio.Reader,
	ctx *Context,
	unmarshalReq func(*bitio.Reader) (R, error),
	unmarshalAck func(*bitio.Reader) (A, error),
) (Request[R, A], error) {
	var out Request[R, A]
	if ctx.AckFlag {
		a, err := unmarshalAck(r)
		if err != nil {
			return out, err
		}
		out.IsAck = true
		out.Ack = a
		return out, nil
	}
	rq, err := unmarshalReq(r)
	if err != nil {
		return out, err
	}
	out.Req = rq
	return out, nil
}
