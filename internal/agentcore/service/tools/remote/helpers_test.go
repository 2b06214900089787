package remote

import (
	"io"
	"net/http"
	"reflect"

	"github.com/kiosk404/agentcore/pkg/utils/json"
)

func ioCopy(w io.Writer, r *http.Request) (int64, error) {
	return io.Copy(w, r.Body)
}

func equalJSON(a, b any) bool {
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	var av, bv any
	_ = json.Unmarshal(ab, &av)
	_ = json.Unmarshal(bb, &bv)
	return reflect.DeepEqual(av, bv)
}
