package main

import (
	"strings"
	"testing"
)

func TestComputeIntegrity_Format(t *testing.T) {
	digest := ComputeIntegrity([]byte("hello world"))
	if !strings.HasPrefix(digest, "sha512-") {
		t.Errorf("expected sha512- prefix, got %q", digest)
	}
}

func TestVerifyIntegrity_Match(t *testing.T) {
	data := []byte("tarball bytes")
	digest := ComputeIntegrity(data)
	if err := VerifyIntegrity("acme/core", digest, data); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestVerifyIntegrity_Mismatch(t *testing.T) {
	data := []byte("tarball bytes")
	wrong := ComputeIntegrity([]byte("different bytes"))
	err := VerifyIntegrity("acme/core", wrong, data)
	mismatch, ok := err.(*IntegrityMismatchError)
	if !ok {
		t.Fatalf("expected *IntegrityMismatchError, got %T: %v", err, err)
	}
	if mismatch.Package != "acme/core" || mismatch.Expected != wrong {
		t.Errorf("unexpected mismatch fields: %+v", mismatch)
	}
}

func TestComputeIntegrity_Deterministic(t *testing.T) {
	data := []byte("repeatable")
	if ComputeIntegrity(data) != ComputeIntegrity(data) {
		t.Error("expected deterministic digest for identical input")
	}
}
