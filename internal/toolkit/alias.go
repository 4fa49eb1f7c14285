package toolkit

import (
	"github.com/tidwall/gjson"
)

// pathAliases lists the argument keys accepted for a file path, in priority
// order, per spec §9's alias-handling requirement.
var pathAliases = []string{"path", "file_path", "filepath", "filename", "file"}

// srcAliases / dstAliases cover move_file and copy_file's two-path shape.
var srcAliases = []string{"src_path", "from", "source", "src"}
var dstAliases = []string{"dest_path", "to", "destination", "dest"}

// oldTextAliases / newTextAliases extend the alias resolver to patch
// arguments, per SPEC_FULL.md's open-question resolution grounded in
// original_source's tools.rs::edit_file alias handling.
var oldTextAliases = []string{"old_content", "old_text", "old"}
var newTextAliases = []string{"new_content", "new_text", "new"}

// resolveString pulls the first present, non-empty string field named by
// any of keys out of an arbitrary-shape argument JSON payload, without
// requiring a full struct unmarshal first.
func resolveString(argsJSON []byte, keys ...string) string {
	for _, k := range keys {
		if v := gjson.GetBytes(argsJSON, k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func resolvePathArg(argsJSON []byte) string   { return resolveString(argsJSON, pathAliases...) }
func resolveSrcArg(argsJSON []byte) string    { return resolveString(argsJSON, srcAliases...) }
func resolveDstArg(argsJSON []byte) string    { return resolveString(argsJSON, dstAliases...) }
func resolveOldText(argsJSON []byte) string   { return resolveString(argsJSON, oldTextAliases...) }
func resolveNewText(argsJSON []byte) string   { return resolveString(argsJSON, newTextAliases...) }

func resolveInt(argsJSON []byte, keys ...string) (int, bool) {
	for _, k := range keys {
		if v := gjson.GetBytes(argsJSON, k); v.Exists() {
			return int(v.Int()), true
		}
	}
	return 0, false
}

func resolveBool(argsJSON []byte, key string) bool {
	return gjson.GetBytes(argsJSON, key).Bool()
}
