package platform

import "testing"

func TestSubdirLinuxAmd64(t *testing.T) {
	target := NewTarget("linux/amd64", "debian", "glibc")
	if got := target.Subdir(); got != "linux-64" {
		t.Fatalf("Subdir() = %q, want linux-64", got)
	}
}

func TestSubdirDarwinArm64(t *testing.T) {
	target := NewTarget("darwin/arm64", "", "")
	if got := target.Subdir(); got != "osx-arm64" {
		t.Fatalf("Subdir() = %q, want osx-arm64", got)
	}
}

func TestSubdirWindowsAmd64(t *testing.T) {
	target := NewTarget("windows/amd64", "", "")
	if got := target.Subdir(); got != "win-64" {
		t.Fatalf("Subdir() = %q, want win-64", got)
	}
}

func TestCompilerForLinuxIsGCC(t *testing.T) {
	target := NewTarget("linux/amd64", "debian", "glibc")
	got := target.CompilerFor("c")
	want := "c_linux-64 gcc"
	if got != want {
		t.Fatalf("CompilerFor(c) = %q, want %q", got, want)
	}
}

func TestCDTForNonLinuxIsNoop(t *testing.T) {
	target := NewTarget("darwin/arm64", "", "")
	if got := target.CDTFor("libx11-devel"); got != "libx11-devel" {
		t.Fatalf("CDTFor() = %q, want unchanged", got)
	}
}

func TestCDTForLinuxAddsSysrootSuffix(t *testing.T) {
	target := NewTarget("linux/amd64", "debian", "glibc")
	if got := target.CDTFor("libx11-devel"); got != "libx11-devel-cos7-x86_64" {
		t.Fatalf("CDTFor() = %q", got)
	}
}
