package extraction

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ValidationResult reports the outcome of reading back a protocol file.
// Problems that make the file unusable are Errors; malformed individual
// point entries are Warnings.
type ValidationResult struct {
	IsValid       bool     `json:"is_valid"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	PointCount    int      `json:"point_count"`
	FileSizeBytes int64    `json:"file_size_bytes"`
}

func (r *ValidationResult) errorf(format string, a ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, a...))
}

func (r *ValidationResult) warnf(format string, a ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, a...))
}

// ValidateProtocolFile parses path and checks it against the protocol format.
func (e *Extractor) ValidateProtocolFile(path string) ValidationResult {
	res := ValidateProtocolFile(path)
	if res.IsValid {
		e.log.Infof("Protocol %s is valid: %d points, %d warnings", path, res.PointCount, len(res.Warnings))
	} else {
		e.log.Warnf("Protocol %s is invalid: %s", path, strings.Join(res.Errors, "; "))
	}
	return res
}

type iniSection struct {
	values map[string]string
	order  []string
}

// ValidateProtocolFile parses path and checks it against the protocol format.
func ValidateProtocolFile(path string) ValidationResult {
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}

	st, err := os.Stat(path)
	if err != nil {
		res.errorf("cannot read protocol file: %v", err)
		return res
	}
	res.FileSizeBytes = st.Size()

	sections, err := parseINI(path, &res)
	if err != nil {
		res.errorf("cannot read protocol file: %v", err)
		return res
	}

	img, ok := sections[sectionImage]
	if !ok {
		res.errorf("missing [%s] section", sectionImage)
	} else {
		checkImageSection(img, &res)
	}

	layout, ok := sections[sectionLayout]
	if !ok {
		res.errorf("missing [%s] section", sectionLayout)
	} else {
		checkLayoutSection(layout, &res)
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

func parseINI(path string, res *ValidationResult) (map[string]*iniSection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sections := make(map[string]*iniSection)
	var current *iniSection
	lineNo := 0

	// Point lines grow with label length; allow up to the whole file.
	maxLine := bufio.MaxScanTokenSize
	if st, err := f.Stat(); err == nil && st.Size()+1 > int64(maxLine) {
		maxLine = int(st.Size()) + 1
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			if _, dup := sections[name]; dup {
				res.warnf("line %d: duplicate section [%s]", lineNo, name)
			}
			current = &iniSection{values: make(map[string]string)}
			sections[name] = current
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			res.warnf("line %d: not a key/value entry: %q", lineNo, line)
			continue
		}
		if current == nil {
			res.warnf("line %d: entry outside any section", lineNo)
			continue
		}
		key = strings.TrimSpace(key)
		if _, dup := current.values[key]; dup {
			res.warnf("line %d: duplicate key %s", lineNo, key)
		} else {
			current.order = append(current.order, key)
		}
		current.values[key] = strings.TrimSpace(value)
	}
	return sections, sc.Err()
}

func checkImageSection(s *iniSection, res *ValidationResult) {
	for _, key := range []string{keyFile, keyWidth, keyHeight, keyFormat} {
		if _, ok := s.values[key]; !ok {
			res.warnf("[%s] missing %s", sectionImage, key)
		}
	}
	for _, key := range []string{keyWidth, keyHeight} {
		if v, ok := s.values[key]; ok {
			if _, err := strconv.Atoi(v); err != nil {
				res.warnf("[%s] %s is not an integer: %q", sectionImage, key, v)
			}
		}
	}
	if v, ok := s.values[keyFormat]; ok {
		if _, err := FormatFromExt(unquote(v)); err != nil {
			res.warnf("[%s] unknown %s %s", sectionImage, keyFormat, v)
		}
	}
}

func checkLayoutSection(s *iniSection, res *ValidationResult) {
	declared := -1
	if v, ok := s.values[keyPoints]; !ok {
		res.errorf("[%s] missing %s", sectionLayout, keyPoints)
	} else if n, err := strconv.Atoi(v); err != nil || n < 0 {
		res.errorf("[%s] %s is not a count: %q", sectionLayout, keyPoints, v)
	} else {
		declared = n
		if n == 0 {
			res.errorf("[%s] declares no points", sectionLayout)
		}
	}

	parsed := 0
	for _, key := range s.order {
		if !strings.HasPrefix(key, pointKeyPrefix) {
			continue
		}
		if _, err := strconv.Atoi(key[len(pointKeyPrefix):]); err != nil {
			res.warnf("[%s] unexpected key %s", sectionLayout, key)
			continue
		}
		if checkPoint(key, s.values[key], res) {
			parsed++
		}
	}

	res.PointCount = parsed
	if declared >= 0 && declared != parsed {
		res.errorf("[%s] %s = %d but %d point entries parsed", sectionLayout, keyPoints, declared, parsed)
	}
}

// checkPoint reports whether a P_n payload is usable.
func checkPoint(key, raw string, res *ValidationResult) bool {
	fields := strings.Split(unquote(raw), ";")
	if last := len(fields) - 1; strings.TrimSpace(fields[last]) == "" {
		fields = fields[:last]
	}

	if len(fields) != pointFieldCount {
		res.warnf("%s has %d fields, expected %d", key, len(fields), pointFieldCount)
		if len(fields) < 4 {
			return false
		}
	}

	for i, f := range fields[:4] {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			res.errorf("%s coordinate %d is not a number: %q", key, i+1, strings.TrimSpace(f))
			return false
		}
	}
	return true
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}
