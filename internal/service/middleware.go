package service

import (
	"errors"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// minimumAge is the lowest age accepted by AgeGate.
const minimumAge = 18

// AgeGate rejects requests whose JSON body carries an age below 18. Requests without an age,
// or with an age that cannot be compared as a number, pass through unchanged.
func AgeGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c)
		if err == nil && underage(body) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": msgUnderage})
			return
		}
		c.Next()
	}
}

// underage reports whether the age field of body compares below the minimum age. Comparison
// is loose, the way a JavaScript runtime compares a JSON value with a number: null and false
// count as 0, true as 1, strings and arrays are converted as described in toNumber. A value
// that converts to NaN, such as an object, never compares below.
func underage(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	age := gjson.GetBytes(body, "age")
	if !age.Exists() {
		return false
	}
	n := toNumber(age)
	return !math.IsNaN(n) && n < minimumAge
}

// toNumber converts a JSON value to a number. An array converts through its elements joined
// by commas, so [] is 0, [17] is 17 and [1,2] is NaN.
func toNumber(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return v.Num
	case gjson.String:
		return stringToNumber(v.Str)
	case gjson.Null, gjson.False:
		return 0
	case gjson.True:
		return 1
	}
	if v.IsArray() {
		return stringToNumber(joinArray(v))
	}
	return math.NaN()
}

// joinArray renders an array the way Array.prototype.join does: null elements are empty,
// nested arrays are joined recursively and objects render as "[object Object]".
func joinArray(v gjson.Result) string {
	var parts []string
	for _, element := range v.Array() {
		switch {
		case element.Type == gjson.Null:
			parts = append(parts, "")
		case element.Type == gjson.String:
			parts = append(parts, element.Str)
		case element.IsArray():
			parts = append(parts, joinArray(element))
		case element.IsObject():
			parts = append(parts, "[object Object]")
		default:
			parts = append(parts, element.Raw)
		}
	}
	return strings.Join(parts, ",")
}

var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// stringToNumber converts a string following the StringToNumber grammar: surrounding white
// space is ignored, the empty string is 0, unsigned 0x, 0o and 0b prefixes select the base and
// Infinity is the only spelled out number. Anything else is NaN.
func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			digits := s[2:]
			if strings.ContainsAny(digits, "_+-") {
				return math.NaN()
			}
			n, err := strconv.ParseUint(digits, base, 64)
			if errors.Is(err, strconv.ErrRange) {
				return math.Inf(1)
			}
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	if !decimalLiteral.MatchString(s) {
		return math.NaN()
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return n
}

// RejectGroup rejects every request. It is attached to route groups that must not be served.
func RejectGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": msgGroupDenied})
	}
}

// RequestLogger writes one log line per request once the response is written.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var e *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			e = logger.Error()
		case status >= http.StatusBadRequest:
			e = logger.Warn()
		default:
			e = logger.Info()
		}
		e.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
