package httpx

import (
	"net/http"

	"github.com/clinia/xbulk/errorx"
)

const (
	CliniaHealthyHeaderKey = "X-Clinia-Healthy"
	CliniaHealthyValue     = "true"
	CliniaUnhealthyValue   = "false"

	RequestIDHeaderKey = "X-Request-Id"
)

func SetCliniaHealthyHeader(w http.ResponseWriter) error {
	if w == nil {
		return errorx.InternalErrorf("response writer can not be nil")
	}
	w.Header().Set(CliniaHealthyHeaderKey, CliniaHealthyValue)
	return nil
}

func SetCliniaUnhealthyHeader(w http.ResponseWriter) error {
	if w == nil {
		return errorx.InternalErrorf("response writer can not be nil")
	}
	w.Header().Set(CliniaHealthyHeaderKey, CliniaUnhealthyValue)
	return nil
}
