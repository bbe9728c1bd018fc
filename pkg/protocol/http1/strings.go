/*
 * Copyright (c) 2019. The Conduit Authors.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this work except in compliance with the License.
 * You may obtain a copy of the License in the LICENSE file, or at:
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package http1

import "conduit/utils"

var (
	defaultServerName  = []byte("conduit")
	defaultUserAgent   = []byte("conduit-client")
	defaultContentType = []byte("text/plain; charset=utf-8")
)

var (
	strSlash      = []byte("/")
	strCRLF       = []byte("\r\n")
	strHTTP11     = []byte("HTTP/1.1")
	strHTTP10     = []byte("HTTP/1.0")
	strColonSpace = []byte(": ")

	strResponseContinue = []byte("HTTP/1.1 100 Continue\r\n\r\n")

	strGet     = []byte("GET")
	strHead    = []byte("HEAD")
	strPost    = []byte("POST")
	strPut     = []byte("PUT")
	strDelete  = []byte("DELETE")
	strOptions = []byte("OPTIONS")

	strExpect           = []byte("Expect")
	strConnection       = []byte("Connection")
	strContentLength    = []byte("Content-Length")
	strContentType      = []byte("Content-Type")
	strDate             = []byte("Date")
	strHost             = []byte("Host")
	strServer           = []byte("Server")
	strTransferEncoding = []byte("Transfer-Encoding")
	strUserAgent        = []byte("User-Agent")
	strLocation         = []byte("Location")
	strAllow            = []byte("Allow")

	strClose              = []byte("close")
	strKeepAlive          = []byte("keep-alive")
	strKeepAliveCamelCase = []byte("Keep-Alive")
	strUpgrade            = []byte("Upgrade")
	strChunked            = []byte("chunked")
	strIdentity           = []byte("identity")
	str100Continue        = []byte("100-continue")
)

// Common HTTP status codes.
const (
	StatusContinue           = 100
	StatusSwitchingProtocols = 101

	StatusOK        = 200
	StatusCreated   = 201
	StatusAccepted  = 202
	StatusNoContent = 204

	StatusMovedPermanently  = 301
	StatusFound             = 302
	StatusNotModified       = 304
	StatusTemporaryRedirect = 307
	StatusPermanentRedirect = 308

	StatusBadRequest           = 400
	StatusUnauthorized         = 401
	StatusForbidden            = 403
	StatusNotFound             = 404
	StatusMethodNotAllowed     = 405
	StatusRequestTimeout       = 408
	StatusLengthRequired       = 411
	StatusPayloadTooLarge      = 413
	StatusURITooLong           = 414
	StatusExpectationFailed    = 417
	StatusTooManyRequests      = 429
	StatusHeaderFieldsTooLarge = 431

	StatusInternalServerError     = 500
	StatusNotImplemented          = 501
	StatusBadGateway              = 502
	StatusServiceUnavailable      = 503
	StatusGatewayTimeout          = 504
	StatusHTTPVersionNotSupported = 505
)

var statusReasons = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	102: "Processing",
	200: "OK",
	201: "Created",
	202: "Accepted",
	203: "Non-Authoritative Information",
	204: "No Content",
	205: "Reset Content",
	206: "Partial Content",
	300: "Multiple Choices",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	305: "Use Proxy",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	402: "Payment Required",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	406: "Not Acceptable",
	407: "Proxy Authentication Required",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	411: "Length Required",
	412: "Precondition Failed",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	416: "Range Not Satisfiable",
	417: "Expectation Failed",
	426: "Upgrade Required",
	428: "Precondition Required",
	429: "Too Many Requests",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
	505: "HTTP Version Not Supported",
	511: "Network Authentication Required",
}

// StatusReason returns the canonical reason phrase for the given status
// code. Unknown codes map to "Unknown Status Code".
func StatusReason(statusCode int) string {
	if s, ok := statusReasons[statusCode]; ok {
		return s
	}
	return "Unknown Status Code"
}

// precomputed status lines for common codes
var statusLines = func() map[int][]byte {
	m := make(map[int][]byte, len(statusReasons))
	for code := range statusReasons {
		m[code] = makeStatusLine(code)
	}
	return m
}()

func makeStatusLine(statusCode int) []byte {
	b := append([]byte(nil), strHTTP11...)
	b = append(b, ' ')
	b = utils.AppendUint(b, statusCode)
	b = append(b, ' ')
	b = append(b, StatusReason(statusCode)...)
	return append(b, strCRLF...)
}

func statusLine(statusCode int) []byte {
	if line, ok := statusLines[statusCode]; ok {
		return line
	}
	return makeStatusLine(statusCode)
}
