package system

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestArchitecture(t *testing.T) {
	t.Parallel()

	runner := &FakeRunner{Respond: func(Command) (Output, error) {
		return Output{Stdout: "arm64\n"}, nil
	}}
	arch, err := Architecture(context.Background(), runner, "/target")
	if err != nil {
		t.Fatal(err)
	}
	if arch != "arm64" {
		t.Errorf("Architecture() = %q", arch)
	}

	cmds := runner.Commands()
	if len(cmds) != 1 || cmds[0].Target != "/target" || cmds[0].Args[0] != "dpkg" {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestRelease(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name: "ubuntu",
			content: `PRETTY_NAME="Ubuntu 24.04.1 LTS"
NAME="Ubuntu"
VERSION_ID="24.04"
VERSION_CODENAME=noble
ID=ubuntu
UBUNTU_CODENAME=noble
`,
			want: "noble",
		},
		{
			name:    "ubuntu codename only",
			content: "NAME=\"Ubuntu\"\nUBUNTU_CODENAME='focal'\n",
			want:    "focal",
		},
		{
			name:    "debian",
			content: "# comment\nID=debian\nVERSION_CODENAME=\"bookworm\"\n",
			want:    "bookworm",
		},
		{
			name:    "no codename",
			content: "ID=debian\nVERSION_ID=\"13\"\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			target := t.TempDir()
			if err := os.MkdirAll(filepath.Join(target, "etc"), 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(target, "etc", "os-release"), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			got, err := Release(target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Release() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Release() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReleaseMissing(t *testing.T) {
	t.Parallel()

	if _, err := Release(t.TempDir()); err == nil {
		t.Error("expected an error without os-release")
	}
}

func TestInstalledPackages(t *testing.T) {
	t.Parallel()

	list := `Desired=Unknown/Install/Remove/Purge/Hold
| Status=Not/Inst/Conf-files/Unpacked/halF-conf/Half-inst/trig-aWait/Trig-pend
|/ Err?=(none)/Reinst-required (Status,Err: uppercase=bad)
||/ Name           Version      Architecture Description
+++-==============-============-============-=================================
ii  bash           5.2.21-2     amd64        GNU Bourne Again SHell
rc  old-package    1.0          amd64        removed but configured
ii  libc6:amd64    2.39-0ubuntu8 amd64       GNU C Library
hi  cloud-init     24.1         all          initialization for cloud instances
ii  libc6:i386     2.39-0ubuntu8 i386        GNU C Library
`
	runner := &FakeRunner{Respond: func(Command) (Output, error) {
		return Output{Stdout: list}, nil
	}}

	got, err := InstalledPackages(context.Background(), runner, "/")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"bash", "cloud-init", "libc6"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InstalledPackages() = %v, want %v", got, want)
	}
}
