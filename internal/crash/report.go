package crash

import (
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is both the first line of a report and its file stem.
const TimestampLayout = "2006-01-02 15:04:05"

// CrashReport is everything persisted for one uncaught failure.
type CrashReport struct {
	Timestamp   time.Time
	Environment EnvironmentSnapshot
	Failure     FailureRecord
}

// FormatReport renders r as line-oriented UTF-8 text:
//
//	2018-01-09 10:27:00
//	App Version: 1.0_1
//	OS Version: ubuntu 22.04_6.8.0-45-generic
//	Vendor: LENOVO
//	Model: 21CB
//	CPU: [amd64, 386]
//	Goroutine: 17
//	*errors.errorString: custom failure
//		at main.run(/src/main.go:42)
func FormatReport(r CrashReport) []byte {
	var b strings.Builder
	env := r.Environment

	b.WriteString(r.Timestamp.Format(TimestampLayout))
	b.WriteByte('\n')
	writeField(&b, "App Version", env.AppVersion+"_"+env.AppBuild)
	writeField(&b, "OS Version", env.OSVersion+"_"+env.OSSDKLevel)
	writeField(&b, "Vendor", env.DeviceVendor)
	writeField(&b, "Model", env.DeviceModel)
	writeField(&b, "CPU", "["+strings.Join(env.CPUABIs, ", ")+"]")
	writeField(&b, "Goroutine", strconv.FormatInt(r.Failure.GoroutineID, 10))
	writeFailure(&b, r.Failure)

	return []byte(b.String())
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}
