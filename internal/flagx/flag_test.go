package flagx

import (
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

// serverFlags is the short-flag set the vault server reads from os.Args.
var serverFlags = []string{"-a", "-m", "-u", "-p", "-b", "-g", "-e", "-t", "-l"}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "config file among server flags",
			args:         []string{"-c", "vault.json", "-a", ":50051", "-b", "kyc"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-c", "vault.json"},
		},
		{
			name: "every server flag with a separate value",
			args: []string{
				"-a", ":50051", "-m", ":9464", "-u", "minioadmin", "-p", "secret",
				"-b", "kyc-verifications", "-g", "eu-central-1", "-e", "http://127.0.0.1:9000/",
				"-t", "15", "-l", "debug",
			},
			allowedFlags: serverFlags,
			want: []string{
				"-a", ":50051", "-m", ":9464", "-u", "minioadmin", "-p", "secret",
				"-b", "kyc-verifications", "-g", "eu-central-1", "-e", "http://127.0.0.1:9000/",
				"-t", "15", "-l", "debug",
			},
		},
		{
			name:         "server flags skip the config flag and its value",
			args:         []string{"-c", "vault.json", "-b", "kyc", "-config=other.json", "-l", "warn"},
			allowedFlags: serverFlags,
			want:         []string{"-b", "kyc", "-l", "warn"},
		},
		{
			name:         "equals-joined flags mixed with foreign ones",
			args:         []string{"--verbose", "-config=/etc/kycvault/vault.json", "--region=us-east-1", "-b=kyc", "-x", "1"},
			allowedFlags: []string{"-config", "-b"},
			want:         []string{"-config=/etc/kycvault/vault.json", "-b=kyc"},
		},
		{
			name:         "equals value containing equals signs",
			args:         []string{"-e=http://minio:9000/?a=b", "--token=abc=="},
			allowedFlags: serverFlags,
			want:         []string{"-e=http://minio:9000/?a=b"},
		},
		{
			name:         "foreign flag value with an equals sign is not a flag",
			args:         []string{"-x", "k=v", "-a", ":1"},
			allowedFlags: serverFlags,
			want:         []string{"-a", ":1"},
		},
		{
			name:         "allowed flag without value at the end",
			args:         []string{"-b", "kyc", "-l"},
			allowedFlags: serverFlags,
			want:         []string{"-b", "kyc", "-l"},
		},
		{
			name:         "next dash-starting token is not a value",
			args:         []string{"-c", "-a", ":50051"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c"},
		},
		{
			name:         "repeated flag keeps order",
			args:         []string{"-l", "info", "-l", "debug"},
			allowedFlags: serverFlags,
			want:         []string{"-l", "info", "-l", "debug"},
		},
		{
			name:         "nothing allowed present",
			args:         []string{"save", "--email", "a@example.com"},
			allowedFlags: serverFlags,
			want:         []string{},
		},
		{
			name:         "empty args",
			args:         nil,
			allowedFlags: serverFlags,
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowedFlags)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"short -c", []string{"-c", "/etc/kycvault/short.json"}, "/etc/kycvault/short.json"},
		{"long -config", []string{"-config", "/etc/kycvault/long.json"}, "/etc/kycvault/long.json"},
		{"equals form among server flags", []string{"-a", ":50051", "-config=/etc/kycvault/eq.json", "-l", "debug"}, "/etc/kycvault/eq.json"},
		{"only server flags", []string{"-a", ":50051", "-t", "15"}, ""},
		{"last one wins", []string{"-c", "/path/1.json", "-config", "/path/2.json"}, "/path/2.json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			os.Args = append([]string{"kycvault-server"}, tc.args...)
			assert.Equal(t, tc.want, JsonConfigFlags())
		})
	}
}
