package aaplace_test

import "golang.org/x/tools/container/intsets"

func newSparse() *intsets.Sparse { return new(intsets.Sparse) }
