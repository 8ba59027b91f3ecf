//go:build gpu

package gpu

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/cwbudde/oclkernel/internal/clkernel"
	"github.com/cwbudde/oclkernel/internal/precision"
	"github.com/cwbudde/oclkernel/kernels"
)

func requireDevice(t *testing.T) *Backend {
	t.Helper()
	b, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	platforms, err := b.Platforms()
	if err != nil {
		t.Skipf("OpenCL platforms unavailable: %v", err)
	}
	if len(platforms) == 0 {
		t.Skip("no OpenCL platforms installed")
	}
	return b
}

func TestEnumeratePlatforms(t *testing.T) {
	b := requireDevice(t)

	platforms, err := clkernel.EnumeratePlatforms(b)
	if err != nil {
		t.Fatalf("EnumeratePlatforms failed: %v", err)
	}
	for _, p := range platforms {
		if p.Name == "" {
			t.Error("platform without a name")
		}
		for _, d := range p.Devices {
			if d.MaxWorkGroupSize == 0 {
				t.Errorf("device %q reports zero max work-group size", d.Name)
			}
		}
	}
}

func TestSquareOnDevice(t *testing.T) {
	b := requireDevice(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	k := clkernel.NewFromSource(kernels.Square, b, clkernel.WithLogger(logger))
	defer k.Close()
	if err := k.Init(clkernel.InitOptions{}); err != nil {
		t.Skipf("no usable device: %v", err)
	}
	if precision.IsDouble() && !k.Device().FP64 {
		t.Skipf("device %q lacks fp64", k.Device().Name)
	}

	const w, h = 16, 16
	data := make([]precision.Real, w*h)
	for i := range data {
		data[i] = precision.Real(i) / 3
	}
	results := make([]precision.Real, w*h)

	in, err := k.NewBuffer(clkernel.MemReadOnly, len(data)*precision.Size)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Release()
	out, err := k.NewBuffer(clkernel.MemWriteOnly, len(data)*precision.Size)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Release()

	if err := k.WriteBuffer(in, precision.Bytes(data)); err != nil {
		t.Fatal(err)
	}
	if err := k.Build(precision.BuildOptions()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := k.ActivateKernel(kernels.SquareName); err != nil {
		t.Fatal(err)
	}
	local := []uint64{w, h}
	if k.Device().MaxWorkGroupSize < w*h {
		local = []uint64{1, 1}
	}
	if err := k.Set2DRange([]uint64{w, h}, local, nil); err != nil {
		t.Fatal(err)
	}
	if err := k.SetArg(0, in); err != nil {
		t.Fatal(err)
	}
	if err := k.SetArg(1, out); err != nil {
		t.Fatal(err)
	}
	if err := k.RunAndWait(); err != nil {
		t.Fatalf("RunAndWait failed: %v", err)
	}
	if err := k.ReadBuffer(out, precision.Bytes(results)); err != nil {
		t.Fatal(err)
	}

	for i := range data {
		if results[i] != data[i]*data[i] {
			t.Fatalf("results[%d] = %v, want %v", i, results[i], data[i]*data[i])
		}
	}
}

func TestBuildFailureCarriesLog(t *testing.T) {
	b := requireDevice(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	k := clkernel.NewFromSource([]byte("__kernel void broken( {"), b, clkernel.WithLogger(logger))
	defer k.Close()
	if err := k.Init(clkernel.InitOptions{}); err != nil {
		t.Skipf("no usable device: %v", err)
	}

	err := k.Build("")
	if err == nil {
		t.Fatal("expected build failure")
	}
	var be *clkernel.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("Build error = %T, want *clkernel.BuildError", err)
	}
	if be.Log == "" {
		t.Log("driver returned an empty build log")
	}
}
