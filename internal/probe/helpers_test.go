package probe

import "context"

type scriptedShell struct{ out map[string]string }

func (s *scriptedShell) Exec(_ context.Context, cmd string) (string, error) { return s.out[cmd], nil }
func (s *scriptedShell) ServerVersion() string                             { return "SSH-2.0-OpenSSH" }
func (s *scriptedShell) Close() error                                      { return nil }
