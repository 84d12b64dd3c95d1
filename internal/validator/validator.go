package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)

func Username(username string) error {
	length := utf8.RuneCountInString(username)
	if length < 2 {
		return fmt.Errorf("short_username")
	} else if length > 32 {
		return fmt.Errorf("long_username")
	}

	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("bad_format")
	}
	return nil
}

func ServerName(name string) error {
	length := utf8.RuneCountInString(strings.TrimSpace(name))
	if length == 0 {
		return fmt.Errorf("empty_server_name")
	} else if length > 64 {
		return fmt.Errorf("long_server_name")
	}
	return nil
}

func ChannelName(name string) error {
	length := utf8.RuneCountInString(name)
	if length == 0 {
		return fmt.Errorf("empty_channel_name")
	} else if length > 32 {
		return fmt.Errorf("long_channel_name")
	}

	if strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("whitespace_in_channel_name")
	}
	return nil
}

func MessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("empty_message")
	}

	if utf8.RuneCountInString(content) > 2000 {
		return fmt.Errorf("long_message")
	}
	return nil
}

func ServerPassword(password string) error {
	length := len(password)
	if length < 4 {
		return fmt.Errorf("short_password")
	} else if length > 64 {
		return fmt.Errorf("long_password")
	}
	return nil
}
