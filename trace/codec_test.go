package trace_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litmus-rt/unit-trace/trace"
	"github.com/litmus-rt/unit-trace/trace/internal/testutil"
)

func TestEncodeDecode_EveryType_ByteExact(t *testing.T) {
	var name trace.Name
	copy(name.Name[:], "rtspin")

	tests := []struct {
		label string
		ev    *trace.Event
	}{
		{"name", testutil.Ev(1, 1234, 0, 0, &name)},
		{"params", testutil.Ev(2, 1234, 0, 0, &trace.Params{WCET: 10_000, Period: 100_000, Phase: 7, Partition: 3})},
		{"release", testutil.Ev(0, 42, 5, 1_000_000, &trace.Release{Deadline: 1_100_000})},
		{"assign", testutil.Ev(3, 42, 5, 123, &trace.Assign{Target: 2})},
		{"switch_to", testutil.Ev(0, -2, 9, 555, &trace.SwitchTo{ExecTime: 77})},
		{"switch_away", testutil.Ev(0, 42, 9, 556, &trace.SwitchAway{ExecTime: 1 << 31})},
		{"completion", testutil.Ev(1, 42, 9, 600, &trace.Completion{Forced: 1, Flags: 0x80})},
		{"block", testutil.Ev(1, 42, 9, 601, &trace.Block{})},
		{"resume", testutil.Ev(1, 42, 9, 602, &trace.Resume{})},
		{"action", testutil.Ev(0, 42, 9, 603, &trace.Action{Action: -3})},
		{"sys_release", testutil.Ev(-1, 0, 0, 1 << 40, &trace.SysRelease{Release: 1<<40 + 5})},
	}
	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			// GIVEN an encoded record
			raw := trace.Encode(tc.ev)
			require.Len(t, raw, trace.RecordSize)

			// WHEN it is decoded and encoded again
			got, err := trace.Decode(raw)
			require.NoError(t, err)

			// THEN the bytes and the decoded fields round-trip
			assert.Equal(t, raw, trace.Encode(got))
			assert.Equal(t, tc.label, got.TypeName())
			assert.Equal(t, tc.ev.Header, got.Header)
			assert.Equal(t, tc.ev.When, got.When)
			assert.Equal(t, tc.ev.Payload, got.Payload)
		})
	}
}

func TestDecode_UntimedTypes_WhenIsZero(t *testing.T) {
	raw := trace.Encode(testutil.Ev(0, 1, 0, 999, &trace.Params{Partition: 1}))

	got, err := trace.Decode(raw)

	require.NoError(t, err)
	assert.Zero(t, got.When, "params carries no timestamp")
}

func TestDecode_PartitionByte_UnsignedOrdinal(t *testing.T) {
	// GIVEN a params record whose partition byte has the high bit set
	raw := trace.Encode(testutil.Params(0, 1, 0))
	raw[trace.HeaderSize+12] = 0xC8

	got, err := trace.Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, uint8(200), got.Payload.(*trace.Params).Partition)
}

func TestDecode_LayoutMatchesHeaderWidths(t *testing.T) {
	raw := make([]byte, trace.RecordSize)
	raw[0] = 3    // release
	raw[1] = 0xFF // cpu -1
	raw[2], raw[3] = 0x01, 0x80
	raw[4], raw[5], raw[6], raw[7] = 0x10, 0, 0, 0
	raw[8] = 0x40
	raw[16] = 0x41

	got, err := trace.Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, int8(-1), got.CPU)
	assert.Equal(t, int16(-32767), got.PID)
	assert.Equal(t, int32(16), got.Job)
	assert.Equal(t, uint64(0x40), got.When)
	assert.Equal(t, uint64(0x41), got.Payload.(*trace.Release).Deadline)
}

func TestDecode_InvalidTypeCode(t *testing.T) {
	for _, code := range []byte{0, 12, 99, 0x80} {
		raw := make([]byte, trace.RecordSize)
		raw[0] = code

		_, err := trace.Decode(raw)

		var invalid *trace.InvalidTypeError
		require.True(t, errors.As(err, &invalid), "code %d", code)
		assert.Equal(t, int8(code), invalid.Code)
	}
}

func TestDecode_ShortBuffer(t *testing.T) {
	_, err := trace.Decode(make([]byte, trace.RecordSize-1))
	assert.ErrorIs(t, err, trace.ErrShortRecord)
}

func TestName_StringTrimsPadding(t *testing.T) {
	var n trace.Name
	copy(n.Name[:], "rtspin")
	assert.Equal(t, "rtspin", n.String())
}
