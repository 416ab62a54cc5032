package main

import "github.com/ZenLiuCN/hotswap/library"

type sample struct {
	trace *[]string
}

func (s *sample) Start() {
	*s.trace = append(*s.trace, "start")
}

func (s *sample) Stop() {
	*s.trace = append(*s.trace, "stop")
}

func CreateSample(ctx any) library.Object {
	return &sample{trace: ctx.(*[]string)}
}

func DestroySample(library.Object) {}
