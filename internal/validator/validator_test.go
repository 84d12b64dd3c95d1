package validator_test

import (
	"fmt"
	"strings"
	"testing"

	"parley/internal/validator"
)

func TestUsername(t *testing.T) {
	tests := []struct {
		name          string
		username      string
		expectedError error
	}{
		{
			name:          "Valid: Plain username",
			username:      "alice",
			expectedError: nil,
		},
		{
			name:          "Valid: Separators inside",
			username:      "alice.the_2nd-one",
			expectedError: nil,
		},
		{
			name:          "Valid: Minimum length (2 chars)",
			username:      "ab",
			expectedError: nil,
		},
		{
			name:          "Error: Too short (1 char)",
			username:      "a",
			expectedError: fmt.Errorf("short_username"),
		},
		{
			name:          "Error: Too long (33 chars)",
			username:      strings.Repeat("a", 33),
			expectedError: fmt.Errorf("long_username"),
		},
		{
			name:          "Error: Leading separator",
			username:      "_alice",
			expectedError: fmt.Errorf("bad_format"),
		},
		{
			name:          "Error: Trailing separator",
			username:      "alice.",
			expectedError: fmt.Errorf("bad_format"),
		},
		{
			name:          "Error: Contains space",
			username:      "al ice",
			expectedError: fmt.Errorf("bad_format"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Username(tc.username)

			if tc.expectedError == nil {
				if err != nil {
					t.Errorf("Username(%q) failed unexpectedly: got error %v, want nil", tc.username, err)
				}
				return
			}

			if err == nil {
				t.Errorf("Username(%q) passed unexpectedly: got nil, want error %v", tc.username, tc.expectedError)
				return
			}

			if err.Error() != tc.expectedError.Error() {
				t.Errorf("Username(%q) got error %q, want error %q", tc.username, err.Error(), tc.expectedError.Error())
			}
		})
	}
}

func TestServerName(t *testing.T) {
	tests := []struct {
		name          string
		serverName    string
		expectedError error
	}{
		{
			name:          "Valid: Plain name",
			serverName:    "My server",
			expectedError: nil,
		},
		{
			name:          "Error: Empty",
			serverName:    "",
			expectedError: fmt.Errorf("empty_server_name"),
		},
		{
			name:          "Error: Only whitespace",
			serverName:    "   ",
			expectedError: fmt.Errorf("empty_server_name"),
		},
		{
			name:          "Error: Too long (65 chars)",
			serverName:    strings.Repeat("a", 65),
			expectedError: fmt.Errorf("long_server_name"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.ServerName(tc.serverName)

			if tc.expectedError == nil {
				if err != nil {
					t.Errorf("ServerName(%q) failed unexpectedly: got error %v, want nil", tc.serverName, err)
				}
				return
			}

			if err == nil || err.Error() != tc.expectedError.Error() {
				t.Errorf("ServerName(%q) got error %v, want error %q", tc.serverName, err, tc.expectedError.Error())
			}
		})
	}
}

func TestChannelName(t *testing.T) {
	tests := []struct {
		name          string
		channelName   string
		expectedError error
	}{
		{
			name:          "Valid: Plain name",
			channelName:   "general",
			expectedError: nil,
		},
		{
			name:          "Error: Empty",
			channelName:   "",
			expectedError: fmt.Errorf("empty_channel_name"),
		},
		{
			name:          "Error: Contains space",
			channelName:   "voice lounge",
			expectedError: fmt.Errorf("whitespace_in_channel_name"),
		},
		{
			name:          "Error: Too long (33 chars)",
			channelName:   strings.Repeat("a", 33),
			expectedError: fmt.Errorf("long_channel_name"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.ChannelName(tc.channelName)

			if tc.expectedError == nil {
				if err != nil {
					t.Errorf("ChannelName(%q) failed unexpectedly: got error %v, want nil", tc.channelName, err)
				}
				return
			}

			if err == nil || err.Error() != tc.expectedError.Error() {
				t.Errorf("ChannelName(%q) got error %v, want error %q", tc.channelName, err, tc.expectedError.Error())
			}
		})
	}
}

func TestMessageContent(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		expectedError error
	}{
		{
			name:          "Valid: Plain message",
			content:       "hi",
			expectedError: nil,
		},
		{
			name:          "Valid: Maximum length (2000 chars)",
			content:       strings.Repeat("a", 2000),
			expectedError: nil,
		},
		{
			name:          "Error: Empty",
			content:       "",
			expectedError: fmt.Errorf("empty_message"),
		},
		{
			name:          "Error: Only whitespace",
			content:       " \t ",
			expectedError: fmt.Errorf("empty_message"),
		},
		{
			name:          "Error: Too long (2001 chars)",
			content:       strings.Repeat("a", 2001),
			expectedError: fmt.Errorf("long_message"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.MessageContent(tc.content)

			if tc.expectedError == nil {
				if err != nil {
					t.Errorf("MessageContent(%q) failed unexpectedly: got error %v, want nil", tc.content, err)
				}
				return
			}

			if err == nil || err.Error() != tc.expectedError.Error() {
				t.Errorf("MessageContent(%q) got error %v, want error %q", tc.content, err, tc.expectedError.Error())
			}
		})
	}
}
