// Package xmlcalls is the last-resort recovery parser for models that
// describe tool calls as prose XML rather than emitting structured tool-call
// events (spec §4.2). It recognises three formats ported from the original's
// xml_parser.rs: a JSON-payload <tool_call>, a Qwen-style
// <function=NAME><parameter=KEY> form, and an <function_calls><invoke> form,
// plus a "simple" prose-tag format used to produce human-readable status
// strings instead of structured calls.
package xmlcalls

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Param is one (key, value) pair extracted from an XML tool-call block.
type Param struct {
	Key   string
	Value string
}

// Call is a recovered tool call: a name plus its parameters in source order.
type Call struct {
	Name       string
	Parameters []Param
}

// Detect scans text for any of the three recognised XML tool-call encodings
// and returns the calls found, in source order. Returns nil if none are
// present.
func Detect(text string) []Call {
	if !strings.Contains(text, "<function_calls>") &&
		!strings.Contains(text, "<invoke") &&
		!strings.Contains(text, "<tool_call>") &&
		!strings.Contains(text, "<function=") {
		return nil
	}

	if calls := detectQwenFunctionForm(text); len(calls) > 0 {
		return calls
	}
	if calls := detectInvokeForm(text); len(calls) > 0 {
		return calls
	}
	if calls := detectToolCallForm(text); len(calls) > 0 {
		return calls
	}
	return nil
}

// detectQwenFunctionForm parses
// <tool_call><function=NAME><parameter=KEY>value</parameter></function></tool_call>.
func detectQwenFunctionForm(text string) []Call {
	var calls []Call
	pos := 0
	for {
		tcStart := indexFrom(text, pos, "<tool_call>")
		if tcStart < 0 {
			break
		}
		contentStart := tcStart + len("<tool_call>")
		tcEnd := indexFrom(text, contentStart, "</tool_call>")
		if tcEnd < 0 {
			break
		}
		content := text[contentStart:tcEnd]

		if fs := strings.Index(content, "<function="); fs >= 0 {
			fs += len("<function=")
			if fe := strings.Index(content[fs:], ">"); fe >= 0 {
				fe += fs
				name := strings.TrimSpace(content[fs:fe])
				var params []Param
				paramPos := fe
				for {
					ps := strings.Index(content[paramPos:], "<parameter=")
					if ps < 0 {
						break
					}
					ps += paramPos + len("<parameter=")
					keyEnd := strings.Index(content[ps:], ">")
					if keyEnd < 0 {
						break
					}
					keyEnd += ps
					key := strings.TrimSpace(content[ps:keyEnd])
					valStart := keyEnd + 1
					valEnd := strings.Index(content[valStart:], "</parameter>")
					if valEnd < 0 {
						break
					}
					valEnd += valStart
					value := strings.TrimSpace(content[valStart:valEnd])
					params = append(params, Param{Key: key, Value: value})
					paramPos = valEnd + len("</parameter>")
				}
				if name != "" {
					calls = append(calls, Call{Name: name, Parameters: params})
				}
			}
		}
		pos = tcEnd + len("</tool_call>")
	}
	return calls
}

// detectInvokeForm parses
// <function_calls><invoke name="..."><parameter name="...">value</parameter></invoke></function_calls>.
func detectInvokeForm(text string) []Call {
	var calls []Call
	pos := 0
	for {
		invokeStart := indexFrom(text, pos, "<invoke")
		if invokeStart < 0 {
			break
		}
		nameAttr := indexFrom(text, invokeStart, `name="`)
		if nameAttr < 0 {
			break
		}
		nameStart := nameAttr + len(`name="`)
		nameEnd := strings.Index(text[nameStart:], `"`)
		if nameEnd < 0 {
			break
		}
		nameEnd += nameStart
		name := text[nameStart:nameEnd]

		var params []Param
		paramPos := nameEnd
		invokeEndIdx := strings.Index(text[paramPos:], "</invoke>")
		searchEnd := len(text)
		if invokeEndIdx >= 0 {
			searchEnd = paramPos + invokeEndIdx
		}
		for {
			ps := strings.Index(text[paramPos:searchEnd], `<parameter name="`)
			if ps < 0 {
				break
			}
			ps += paramPos + len(`<parameter name="`)
			pNameEnd := strings.Index(text[ps:searchEnd], `"`)
			if pNameEnd < 0 {
				break
			}
			pNameEnd += ps
			pName := text[ps:pNameEnd]

			valTagStart := strings.Index(text[pNameEnd:searchEnd], ">")
			if valTagStart < 0 {
				break
			}
			valStart := pNameEnd + valTagStart + 1
			valEnd := strings.Index(text[valStart:searchEnd], "</parameter>")
			if valEnd < 0 {
				break
			}
			valEnd += valStart
			params = append(params, Param{Key: pName, Value: text[valStart:valEnd]})
			paramPos = valEnd
		}

		calls = append(calls, Call{Name: name, Parameters: params})

		if invokeEndIdx >= 0 {
			pos = paramPos + len("</invoke>")
		} else {
			break
		}
	}
	return calls
}

// detectToolCallForm parses either a JSON payload
// <tool_call>{"name":"...","arguments":{...}}</tool_call>, or the
// GLM/MiniMax arg_key/arg_value form.
func detectToolCallForm(text string) []Call {
	var calls []Call
	pos := 0
	for {
		start := indexFrom(text, pos, "<tool_call>")
		if start < 0 {
			break
		}
		contentStart := start + len("<tool_call>")
		end := indexFrom(text, contentStart, "</tool_call>")
		if end < 0 {
			break
		}
		content := text[contentStart:end]
		trimmed := strings.TrimSpace(content)

		if strings.HasPrefix(trimmed, "{") {
			var payload struct {
				Name      string                 `json:"name"`
				Arguments map[string]interface{} `json:"arguments"`
			}
			if err := json.UnmarshalFromString(trimmed, &payload); err == nil && payload.Name != "" {
				var params []Param
				for k, v := range payload.Arguments {
					params = append(params, Param{Key: k, Value: stringify(v)})
				}
				calls = append(calls, Call{Name: payload.Name, Parameters: params})
				pos = end + len("</tool_call>")
				continue
			}
		}

		nameEnd := strings.Index(content, "<arg_key>")
		if nameEnd < 0 {
			nameEnd = len(content)
		}
		name := strings.TrimSpace(content[:nameEnd])

		var params []Param
		argsPos := nameEnd
		for {
			ks := strings.Index(content[argsPos:], "<arg_key>")
			if ks < 0 {
				break
			}
			ks += argsPos + len("<arg_key>")
			ke := strings.Index(content[ks:], "</arg_key>")
			if ke < 0 {
				break
			}
			ke += ks
			key := strings.TrimSpace(content[ks:ke])

			vSearchStart := ke + len("</arg_key>")
			vs := strings.Index(content[vSearchStart:], "<arg_value>")
			if vs < 0 {
				break
			}
			vs += vSearchStart + len("<arg_value>")
			ve := strings.Index(content[vs:], "</arg_value>")
			if ve < 0 {
				break
			}
			ve += vs
			value := strings.TrimSpace(content[vs:ve])
			params = append(params, Param{Key: key, Value: value})
			argsPos = ve + len("</arg_value>")
		}

		if name != "" {
			calls = append(calls, Call{Name: name, Parameters: params})
		}
		pos = end + len("</tool_call>")
	}
	return calls
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func indexFrom(text string, from int, substr string) int {
	if from > len(text) {
		return -1
	}
	idx := strings.Index(text[from:], substr)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// simpleTags is the set of "simple" prose tags recognised by the original's
// Sonnet-oriented fallback format, in the order their status messages are
// checked.
var simpleTags = []string{
	"read_file", "write_file", "edit_file", "list_directory", "grep_search", "run_command",
}

// IsXMLToolOutput reports whether text contains any fragment that should be
// suppressed from the visible-content accumulator because it is XML tool
// output rather than prose (§4.2).
func IsXMLToolOutput(text string) bool {
	markers := []string{
		"<function_calls>", "</function_calls>", "<invoke", "</invoke>",
		"<parameter", "</parameter>", "<results>", "</results>",
		"<result>", "</result>", "<output>", "</output>",
		"<path>", "</path>", "<pattern>", "</pattern>", "<command>", "</command>",
		"<tool_call>", "</tool_call>",
	}
	for _, tag := range simpleTags {
		markers = append(markers, "<"+tag+">", "</"+tag+">")
	}
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// ToStatusMessage converts recognised XML tool output into a human-readable
// status string, preferring the "simple" prose-tag format before falling
// back to the three structured formats.
func ToStatusMessage(text string) (string, bool) {
	if !IsXMLToolOutput(text) {
		return "", false
	}
	if msg, ok := simpleFormatMessage(text); ok {
		return msg, true
	}
	calls := Detect(text)
	if len(calls) == 0 {
		return "", false
	}
	var lines []string
	for _, c := range calls {
		lines = append(lines, callStatusMessage(c))
	}
	return strings.Join(lines, "\n"), true
}

func simpleFormatMessage(text string) (string, bool) {
	var lines []string
	if strings.Contains(text, "<read_file>") {
		if p, ok := extractTagContent(text, "path"); ok {
			lines = append(lines, "Reading "+lastSegment(p)+"...")
		}
	}
	if strings.Contains(text, "<write_file>") {
		if p, ok := extractTagContent(text, "path"); ok {
			lines = append(lines, "Writing to "+lastSegment(p)+"...")
		}
	}
	if strings.Contains(text, "<edit_file>") {
		if p, ok := extractTagContent(text, "path"); ok {
			lines = append(lines, "Editing "+lastSegment(p)+"...")
		}
	}
	if strings.Contains(text, "<list_directory>") {
		if p, ok := extractTagContent(text, "path"); ok {
			lines = append(lines, "Listing "+lastSegment(p)+"...")
		}
	}
	if strings.Contains(text, "<grep_search>") {
		if p, ok := extractTagContent(text, "pattern"); ok {
			lines = append(lines, "Searching for "+p+"...")
		}
	}
	if strings.Contains(text, "<run_command>") {
		if p, ok := extractTagContent(text, "command"); ok {
			lines = append(lines, "Running "+p+"...")
		}
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

func callStatusMessage(c Call) string {
	find := func(key string) string {
		for _, p := range c.Parameters {
			if p.Key == key {
				return p.Value
			}
		}
		return ""
	}
	switch c.Name {
	case "read_file":
		return "Reading " + lastSegment(orDefault(find("path"), "file")) + "..."
	case "write_file":
		return "Writing to " + lastSegment(orDefault(find("path"), "file")) + "..."
	case "edit_file":
		return "Editing " + lastSegment(orDefault(find("path"), "file")) + "..."
	case "list_directory":
		return "Listing " + lastSegment(orDefault(find("path"), "directory")) + "..."
	case "grep_search":
		return "Searching for " + orDefault(find("pattern"), "pattern") + "..."
	case "run_command":
		return "Running " + orDefault(find("command"), "command") + "..."
	default:
		return "Using tool " + c.Name + "..."
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func lastSegment(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

func extractTagContent(text, tag string) (string, bool) {
	startTag := "<" + tag + ">"
	endTag := "</" + tag + ">"
	start := strings.Index(text, startTag)
	if start < 0 {
		return "", false
	}
	start += len(startTag)
	end := strings.Index(text[start:], endTag)
	if end < 0 {
		return "", false
	}
	end += start
	if start >= end {
		return "", false
	}
	return strings.TrimSpace(text[start:end]), true
}
