package pkg

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPaginate(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}
	require.Equal(t, []int{0, 1}, Paginate(items, 0, 2))
	require.Equal(t, []int{4}, Paginate(items, 2, 2))
	require.Empty(t, Paginate(items, 3, 2))
	require.Empty(t, Paginate(items, -1, 2))
	require.Empty(t, Paginate(items, 0, 0))
	require.Empty(t, Paginate(items, math.MaxInt64/500, 1000))
	require.Empty(t, Paginate(items, 1, math.MaxInt64))
}

func TestConv(t *testing.T) {
	require.EqualValues(t, 1234567, BytesToInt64(Int64ToBytes(1234567)))

	d, err := BytesToDecimal(DecimalToBytes(decimal.RequireFromString("12.5")))
	require.NoError(t, err)
	require.Equal(t, "12.50000000", d.StringFixed(8))

	tiny := decimal.RequireFromString("0.000000004")
	d, err = BytesToDecimal(DecimalToBytes(tiny))
	require.NoError(t, err)
	require.True(t, d.Equal(tiny), "stored amounts keep full precision")
	require.Equal(t, "0.000000004", FormatAmount(tiny))
	require.Equal(t, "12.50000000", FormatAmount(decimal.RequireFromString("12.5")))
	require.Equal(t, "1.00000000", FormatAmount(decimal.RequireFromString("1.000000000000")))

	d, err = BytesToDecimal(nil)
	require.NoError(t, err)
	require.True(t, d.IsZero())

	_, err = BytesToDecimal([]byte("abc"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger("loud")
	require.Error(t, err)
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(LogMiddleware(zap.NewNop()), CORSMiddleware())
	engine.POST("ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/ping", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "pong", w.Body.String())
}
