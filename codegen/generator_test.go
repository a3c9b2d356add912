// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package codegen

import (
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bufbuild/protoembed/ast"
	"github.com/bufbuild/protoembed/checker"
	"github.com/bufbuild/protoembed/parser"
)

const pointSource = `
message Point {
  required int32 x = 1;
  required int32 y = 2;
}
`

func generate(t *testing.T, opts Options, source string) *Output {
	t.Helper()
	out, err := tryGenerate(t, opts, source)
	require.NoError(t, err)
	return out
}

func tryGenerate(t *testing.T, opts Options, source string) (*Output, error) {
	t.Helper()
	file, err := parser.ParseString("test.proto", source)
	require.NoError(t, err)
	res, err := checker.Check(file, nil)
	require.NoError(t, err)
	gen, err := New(opts)
	require.NoError(t, err)
	return gen.Generate(file, res.Order, "test")
}

func TestGeneratePoint(t *testing.T) {
	t.Parallel()
	out := generate(t, Options{}, pointSource)
	assert.Equal(t, "test.h", out.Header.Path)
	assert.Equal(t, "test.c", out.Source.Path)

	header := out.Header.Text
	assert.True(t, strings.HasPrefix(header, "/* Generated by protoc-embedded from test.proto. DO NOT EDIT. */\n#ifndef TEST_H\n#define TEST_H\n"))
	assert.True(t, strings.HasSuffix(header, "#endif /* TEST_H */\n"))
	assert.Contains(t, header, "#include <stdint.h>\n")
	assert.Contains(t, header, `
/* message Point */
#define Point_MAX_SIZE 22

typedef struct Point {
    int32_t x;
    int32_t y;
} Point;

void Point_clear(Point *msg);
size_t Point_size(const Point *msg);
int Point_encode(const Point *msg, uint8_t *buf, size_t len);
int Point_decode(Point *msg, const uint8_t *buf, size_t len);
int Point_write_delimited_to(const Point *msg, uint8_t *buf, size_t len, size_t offset);
int Point_read_delimited_from(Point *msg, const uint8_t *buf, size_t len, size_t offset);
`)

	source := out.Source.Text
	assert.Contains(t, source, "#include \"test.h\"\n")
	assert.Contains(t, source, "void Point_clear(Point *msg)\n{\n    memset(msg, 0, sizeof(*msg));\n}\n")
	assert.Contains(t, source, "    n += 1 + pb_size_int32(msg->x);\n    n += 1 + pb_size_int32(msg->y);\n")
	assert.Contains(t, source, "pb_put_varint(buf, len, &pos, 8u) < 0 || pb_put_int32(buf, len, &pos, msg->x) < 0")
	assert.Contains(t, source, "pb_put_varint(buf, len, &pos, 16u) < 0 || pb_put_int32(buf, len, &pos, msg->y) < 0")
	assert.Contains(t, source, "        case 2: {\n            int32_t v;\n            if ((key & 7) != 0 || pb_get_int32(buf, len, &pos, &v) < 0) {")
}

func TestGenerateDeterministic(t *testing.T) {
	t.Parallel()
	const source = `
enum Kind { A = 0; B = 1; }
message Outer { repeated Inner inner = 1; optional Kind kind = 2 [default = B]; }
message Inner { optional string name = 1 [default = "n"]; }
message Lone {}
`
	first := generate(t, Options{}, source)
	for range 5 {
		again := generate(t, Options{}, source)
		assert.Equal(t, first, again)
	}
}

func TestGenerateTopologicalOrder(t *testing.T) {
	t.Parallel()
	out := generate(t, Options{}, `
message Top { required Left l = 1; required Right r = 2; optional Color c = 3; }
message Right { required int32 x = 1; }
message Left { required Right r = 1; }
enum Color { RED = 0; }
message Other {}
`)
	header := out.Header.Text
	positions := make(map[string]int)
	for _, name := range []string{"Top", "Right", "Left", "Color", "Other"} {
		marker := "typedef struct " + name + " {"
		if name == "Color" {
			marker = "typedef enum Color {"
		}
		positions[name] = strings.Index(header, marker)
		require.GreaterOrEqual(t, positions[name], 0, name)
	}
	// Every type follows the types it embeds.
	assert.Less(t, positions["Right"], positions["Left"])
	assert.Less(t, positions["Left"], positions["Top"])
	assert.Less(t, positions["Color"], positions["Top"])
	// Ties go to declaration order.
	assert.Less(t, positions["Top"], positions["Other"])

	source := out.Source.Text
	assert.Less(t, strings.Index(source, "int Right_encode("), strings.Index(source, "int Left_encode("))
	assert.Less(t, strings.Index(source, "int Left_encode("), strings.Index(source, "int Top_encode("))
}

func TestGenerateFieldOrder(t *testing.T) {
	t.Parallel()
	out := generate(t, Options{}, `message M {
  required int32 z = 3;
  required int32 a = 1;
  required int32 m = 2;
}`)
	assert.Contains(t, out.Header.Text, "typedef struct M {\n    int32_t z;\n    int32_t a;\n    int32_t m;\n} M;\n")
}

func TestGenerateEnum(t *testing.T) {
	t.Parallel()
	out := generate(t, Options{}, `enum Color { RED = 0; GREEN = 1; BLUE = 0x10; }`)
	assert.Contains(t, out.Header.Text, "\ntypedef enum Color {\n    Color_RED = 0,\n    Color_GREEN = 1,\n    Color_BLUE = 16,\n} Color;\n")
	assert.NotContains(t, out.Source.Text, "Color_")
}

func TestGenerateMembers(t *testing.T) {
	t.Parallel()
	out := generate(t, Options{MaxRepeatedLen: 4, MaxStringLen: 10}, `
enum Mode { OFF = 0; ON = 1; }
message Inner {}
message Sample {
  optional uint64 id = 1;
  repeated sint32 values = 2 [max_count = 8];
  required string name = 3;
  optional bytes blob = 4 [max_size = 3];
  repeated string tags = 5;
  optional Inner inner = 6;
  repeated Mode modes = 7;
  required bool ok = 8;
}
`)
	assert.Contains(t, out.Header.Text, `
/* message Inner */
#define Inner_MAX_SIZE 0

typedef struct Inner {
    uint8_t unused_;
} Inner;
`)
	assert.Contains(t, out.Header.Text, `#define Sample_values_MAX_COUNT 8
#define Sample_name_MAX_LEN 10
#define Sample_blob_MAX_LEN 3
#define Sample_tags_MAX_COUNT 4
#define Sample_tags_MAX_LEN 10
#define Sample_modes_MAX_COUNT 4
`)
	assert.Contains(t, out.Header.Text, `typedef struct Sample {
    bool has_id;
    uint64_t id;
    size_t values_count;
    int32_t values[Sample_values_MAX_COUNT];
    size_t name_len;
    char name[Sample_name_MAX_LEN];
    bool has_blob;
    size_t blob_len;
    uint8_t blob[Sample_blob_MAX_LEN];
    size_t tags_count;
    size_t tags_len[Sample_tags_MAX_COUNT];
    char tags[Sample_tags_MAX_COUNT][Sample_tags_MAX_LEN];
    bool has_inner;
    Inner inner;
    size_t modes_count;
    Mode modes[Sample_modes_MAX_COUNT];
    bool ok;
} Sample;
`)
	assert.Contains(t, out.Header.Text, "string and bytes fields are inline arrays of max_size bytes\n *    (default 10)")
	assert.Contains(t, out.Source.Text, "msg->modes[msg->modes_count++] = (Mode)v;")
	assert.Contains(t, out.Source.Text, "pb_get_bytes(buf, len, &pos, msg->blob, Sample_blob_MAX_LEN, &msg->blob_len)")
	assert.Contains(t, out.Source.Text, "Inner_decode(&msg->inner, buf + pos, (size_t)size)")
}

func TestGenerateMaxSize(t *testing.T) {
	t.Parallel()
	out := generate(t, Options{}, `
enum Small { A = 0; B = 100; }
message Point { required int32 x = 1; required int32 y = 2; }
message Line {
  required Point a = 1;
  optional Point b = 2;
  repeated fixed32 marks = 3 [max_count = 2];
  optional string label = 16 [max_size = 200];
  optional Small s = 17;
}
`)
	// Point: two fields of 1 key byte and 10 value bytes.
	assert.Contains(t, out.Header.Text, "#define Point_MAX_SIZE 22\n")
	// Line: 2*(1+1+22) + 2*(1+4) + (2+2+200) + (2+1).
	assert.Contains(t, out.Header.Text, "#define Line_MAX_SIZE 265\n")
}

func TestGenerateDefaults(t *testing.T) {
	t.Parallel()
	out := generate(t, Options{}, `
enum Level { LOW = 0; HIGH = 1; }
message Settings {
  optional int32 a = 1 [default = -2147483648];
  optional int64 b = 2 [default = -5];
  optional uint32 c = 3 [default = 7];
  optional uint64 d = 4 [default = 18446744073709551615];
  optional float e = 5 [default = 1];
  optional double f = 6 [default = -inf];
  optional double g = 7 [default = nan];
  optional bool h = 8 [default = true];
  optional string i = 9 [default = "a\"b?\n"];
  optional Level j = 10 [default = HIGH];
  required sfixed64 k = 11 [default = -9223372036854775808];
  optional float l = 12 [default = 0.1];
}
`)
	assert.Contains(t, out.Source.Text, `void Settings_clear(Settings *msg)
{
    memset(msg, 0, sizeof(*msg));
    msg->a = INT32_MIN;
    msg->b = INT64_C(-5);
    msg->c = UINT32_C(7);
    msg->d = UINT64_C(18446744073709551615);
    msg->e = 1.0f;
    msg->f = -INFINITY;
    msg->g = NAN;
    msg->h = true;
    memcpy(msg->i, "a\"b\?\012", 5);
    msg->i_len = 5;
    msg->j = Level_HIGH;
    msg->k = INT64_MIN;
    msg->l = 0.1f;
}
`)
}

func TestGenerateDefaultTooLong(t *testing.T) {
	t.Parallel()
	_, err := tryGenerate(t, Options{MaxStringLen: 2}, `message M { optional string s = 1 [default = "abc"]; }`)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "default_blob", genErr.Key)
	assert.EqualError(t, err, `template source.yaml, fragment "default_blob": field M.s: default value is 3 bytes, which exceeds the capacity of 2`)
}

func TestGenerateMaxSizeOverflow(t *testing.T) {
	t.Parallel()
	_, err := tryGenerate(t, Options{}, `
message L0 { required fixed64 v = 1; }
message L1 { repeated L0 items = 1 [max_count = 65535]; }
message L2 { repeated L1 items = 1 [max_count = 65535]; }
message L3 { repeated L2 items = 1 [max_count = 65535]; }
message L4 { repeated L3 items = 1 [max_count = 65535]; }
`)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "message", genErr.Key)
	assert.ErrorIs(t, err, ErrSizeOverflow)
	assert.EqualError(t, err, `template header.yaml, fragment "message": message L4: maximum encoded size does not fit in 64 bits`)

	out := generate(t, Options{}, `
message L0 { required fixed64 v = 1; }
message L1 { repeated L0 items = 1 [max_count = 65535]; }
message L2 { repeated L1 items = 1 [max_count = 65535]; }
`)
	assert.Contains(t, out.Header.Text, "#define L2_MAX_SIZE 47243460615\n")
}

func TestGenerateInvalidOptions(t *testing.T) {
	t.Parallel()
	_, err := tryGenerate(t, Options{MaxRepeatedLen: -1}, pointSource)
	require.EqualError(t, err, "invalid max repeated length -1: must be between 1 and 65535")
	_, err = tryGenerate(t, Options{MaxStringLen: math.MaxUint16 + 1}, pointSource)
	require.EqualError(t, err, "invalid max string length 65536: must be between 1 and 65535")
}

func TestGenerateCustomTemplates(t *testing.T) {
	t.Parallel()
	header, err := ParseGroup("header.yaml", []byte(`
file: "{{types}}"
message: "struct {{name}} {{max_size}}\n"
member_required: ""
capacity: ""
`))
	require.NoError(t, err)
	source, err := DefaultGroup(SourceGroup)
	require.NoError(t, err)

	file, err := parser.ParseString("test.proto", pointSource+"enum E { X = 1; }")
	require.NoError(t, err)
	res, err := checker.Check(file, nil)
	require.NoError(t, err)

	gen := &Generator{Header: header, Source: source}
	_, err = gen.Generate(file, res.Order[:1], "test")
	require.NoError(t, err)

	// The custom header has no fragment for enums.
	_, err = gen.Generate(file, res.Order, "test")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "header.yaml", genErr.Template)
	assert.Equal(t, "enum_value", genErr.Key)
	assert.ErrorIs(t, err, ErrUnknownFragment)
}

func TestCLiterals(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `"plain"`, cStringLiteral([]byte("plain")))
	assert.Equal(t, `"\\\"\?\000\377x"`, cStringLiteral([]byte("\\\"?\x00\xffx")))
	assert.Equal(t, "1.5", cFloatLiteral(ast.Double, 1.5))
	assert.Equal(t, "3.0", cFloatLiteral(ast.Double, 3))
	assert.Equal(t, "1e+100", cFloatLiteral(ast.Double, 1e100))
	assert.Equal(t, "-0.25f", cFloatLiteral(ast.Float, -0.25))
	assert.Equal(t, "UINT32_C(4294967295)", cIntLiteral(ast.Fixed32, &ast.IntLiteral{Value: math.MaxUint32}))
	assert.Equal(t, "INT32_C(-1)", cIntLiteral(ast.Sint32, &ast.IntLiteral{Value: 1, Negative: true}))
	assert.Equal(t, "INT64_C(42)", cIntLiteral(ast.Sfixed64, &ast.IntLiteral{Value: 42}))
	assert.Equal(t, "POINT_PROTO", cIdent("point.proto"))
	assert.Equal(t, "PB_3D_MODEL", cIdent("3d-model"))
}

// TestGeneratedCodeRoundTrip compiles the generated code with the host C
// compiler and runs a program that encodes and decodes a Point.
func TestGeneratedCodeRoundTrip(t *testing.T) {
	t.Parallel()
	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("no C compiler available")
	}
	out := generate(t, Options{}, pointSource+`
message Polyline {
  repeated Point points = 1 [max_count = 4];
  optional string name = 2 [max_size = 8, default = "line"];
}
`)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, out.Header.Path), []byte(out.Header.Text), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, out.Source.Path), []byte(out.Source.Text), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte(`#include "test.h"
#include <stdio.h>
#include <string.h>

int main(void)
{
    uint8_t buf[Polyline_MAX_SIZE];
    Point p, q;
    Polyline line, copy;
    int n;

    Point_clear(&p);
    p.x = 150;
    p.y = -1;
    n = Point_encode(&p, buf, sizeof(buf));
    if (n != (int)Point_size(&p) || Point_decode(&q, buf, (size_t)n) != n || q.x != 150 || q.y != -1) {
        return 1;
    }
    if (buf[0] != 0x08 || buf[1] != 0x96 || buf[2] != 0x01) {
        return 2;
    }

    Polyline_clear(&line);
    if (line.name_len != 4 || memcmp(line.name, "line", 4) != 0 || line.has_name) {
        return 3;
    }
    line.points_count = 2;
    line.points[1] = p;
    n = Polyline_write_delimited_to(&line, buf, sizeof(buf), 0);
    if (n < 0 || Polyline_read_delimited_from(&copy, buf, sizeof(buf), 0) != n) {
        return 4;
    }
    if (copy.points_count != 2 || copy.points[1].x != 150 || copy.points[0].y != 0) {
        return 5;
    }
    printf("ok\n");
    return 0;
}
`), 0o600))

	bin := filepath.Join(dir, "roundtrip")
	build := exec.Command(cc, "-std=c99", "-Wall", "-Wextra", "-Werror", "-o", bin, "main.c", "test.c", "-lm")
	build.Dir = dir
	output, err := build.CombinedOutput()
	require.NoError(t, err, "compile failed:\n%s", output)

	output, err = exec.Command(bin).CombinedOutput()
	require.NoError(t, err, "round trip failed:\n%s", output)
	assert.Equal(t, "ok\n", string(output))
}
