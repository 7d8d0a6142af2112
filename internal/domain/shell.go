package domain

import "strings"

// shellSpecialChars have meaning to a POSIX shell and force quoting
const shellSpecialChars = " \t\n\r'\"$`\\!*?[](){}|;<>&~#%"

// ShellEscape quotes s for display on a shell command line. The result is
// only meant for logs; processes are started without a shell.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, shellSpecialChars) {
		return s
	}
	// close the quote, emit a double-quoted ', reopen
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// ShellEscapeCommand quotes a binary and its arguments for display
func ShellEscapeCommand(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, ShellEscape(binary))
	for _, arg := range args {
		parts = append(parts, ShellEscape(arg))
	}
	return strings.Join(parts, " ")
}
