package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Field helpers for common deployment entities
func Component(name string) Field {
	return String("component", name)
}

func HostName(name string) Field {
	return String("host", name)
}

func SubnetName(name string) Field {
	return String("subnet", name)
}

func ImageName(name string) Field {
	return String("image", name)
}

func PlaybookName(name string) Field {
	return String("playbook", name)
}

func Phase(name string) Field {
	return String("phase", name)
}

func Attempt(n int) Field {
	return Int("attempt", n)
}

func Batch(n int) Field {
	return Int("batch", n)
}

func Operation(op string) Field {
	return String("operation", op)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

func Status(s string) Field {
	return String("status", s)
}
