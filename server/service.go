package server

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

type methodType struct {
	name      string // wire name, e.g. "navigate"
	method    reflect.Method
	ArgType   reflect.Type
	ReplyType reflect.Type
}

// service exposes the methods of one receiver as a protocol domain.
// A *Page receiver with method Navigate(args *NavigateArgs, reply *NavigateReply) error
// answers "Page.navigate".
type service struct {
	name   string
	rcvr   reflect.Value
	typ    reflect.Type
	method map[string]*methodType
}

// newService creates a service and scans its exported methods.
func newService(rcvr any) (*service, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("server: rcvr must be a pointer, got %v", typ)
	}
	if typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("server: rcvr must point to a struct, got %s", typ.Elem().Kind())
	}
	svc := &service{
		name:   typ.Elem().Name(),
		rcvr:   reflect.ValueOf(rcvr),
		typ:    typ,
		method: make(map[string]*methodType),
	}
	svc.registerMethods()
	if len(svc.method) == 0 {
		return nil, fmt.Errorf("server: %s has no methods of the form M(*Args, *Reply) error", svc.name)
	}
	return svc, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// registerMethods keeps methods shaped (receiver, *Args, *Reply) error.
func (s *service) registerMethods() {
	for i := 0; i < s.typ.NumMethod(); i++ {
		method := s.typ.Method(i)
		if method.Type.NumIn() != 3 || method.Type.NumOut() != 1 || method.Type.Out(0) != errorType ||
			method.Type.In(1).Kind() != reflect.Ptr || method.Type.In(2).Kind() != reflect.Ptr {
			continue
		}

		name := lowerFirst(method.Name)
		s.method[name] = &methodType{
			name:      name,
			method:    method,
			ArgType:   method.Type.In(1).Elem(),
			ReplyType: method.Type.In(2).Elem(),
		}
	}
}

// handler adapts one reflected method to a CommandHandler.
func (s *service) handler(mType *methodType) CommandHandler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		argv := reflect.New(mType.ArgType)
		replyv := reflect.New(mType.ReplyType)

		if len(params) > 0 {
			if err := json.Unmarshal(params, argv.Interface()); err != nil {
				return nil, invalidParams(err)
			}
		}

		if err := s.call(mType, argv, replyv); err != nil {
			return nil, err
		}
		return replyv.Interface(), nil
	}
}

func (s *service) call(mType *methodType, argv, replyv reflect.Value) error {
	args := [3]reflect.Value{s.rcvr, argv, replyv}
	results := mType.method.Func.Call(args[:])
	if !results[0].IsNil() {
		return results[0].Interface().(error)
	}
	return nil
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}
