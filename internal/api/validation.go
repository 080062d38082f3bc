package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"traderesonance/server/internal/csvio"
	"traderesonance/server/internal/models"
)

var validatorsOnce sync.Once

// registerValidators teaches gin's validator the trend rule and makes it
// report fields by their json names.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		mustRegister(v, "trend", func(fl validator.FieldLevel) bool {
			_, ok := models.ParseTrend(fl.Field().String())
			return ok
		})
	})
}

// mustRegister panics at startup rather than on the first bind using tag.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register %s validation: %v", tag, err))
	}
}

// Flag is a boolean that also accepts the checkbox spellings forms send
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = n != 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("is_production_city must be a boolean")
	}
	*f = Flag(csvio.ParseBool(s))
	return nil
}

// EntryInput is a manual submission from the entry form or a JSON client.
type EntryInput struct {
	City             string   `json:"city" form:"city" binding:"required,notblank,max=120"`
	Product          string   `json:"product" form:"product" binding:"required,notblank,max=120"`
	Price            *float64 `json:"price" form:"price" binding:"required,gte=0"`
	Trend            string   `json:"trend" form:"trend" binding:"trend"`
	Percent          float64  `json:"percent" form:"percent"`
	IsProductionCity Flag     `json:"is_production_city" form:"-"`
}

func (in EntryInput) Fields() models.EntryFields {
	trend, _ := models.ParseTrend(in.Trend)
	return models.EntryFields{
		City:             in.City,
		Product:          in.Product,
		Price:            *in.Price,
		Trend:            trend,
		Percent:          in.Percent,
		IsProductionCity: bool(in.IsProductionCity),
	}
}

// EntryUpdate carries the mutable fields of an existing entry.
type EntryUpdate struct {
	Price            *float64 `json:"price" form:"price" binding:"required,gte=0"`
	Trend            string   `json:"trend" form:"trend" binding:"trend"`
	Percent          float64  `json:"percent" form:"percent"`
	IsProductionCity Flag     `json:"is_production_city" form:"-"`
}

func (in EntryUpdate) Fields() models.EntryFields {
	trend, _ := models.ParseTrend(in.Trend)
	return models.EntryFields{
		Price:            *in.Price,
		Trend:            trend,
		Percent:          in.Percent,
		IsProductionCity: bool(in.IsProductionCity),
	}
}

var errMissingPrice = errors.New("price is required")

var fieldMessages = map[string]string{
	"required": "is required",
	"notblank": "is required",
	"gte":      "must not be negative",
	"max":      "is too long",
	"trend":    "must be up, down or flat",
}

// bindEntry binds JSON or form input. Form checkboxes arrive as strings and
// are read separately. The returned map is non-nil on validation failure.
func bindEntry(c *gin.Context, dst interface{}, flag *Flag) (map[string]string, error) {
	err := c.ShouldBind(dst)
	fields := make(map[string]string)
	if c.ContentType() != binding.MIMEJSON {
		*flag = Flag(csvio.ParseBool(c.PostForm("is_production_city")))
		// the form mapper reads an empty price as 0
		if strings.TrimSpace(c.PostForm("price")) == "" {
			fields["price"] = fieldMessages["required"]
			if err == nil {
				err = errMissingPrice
			}
		}
	}
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			msg, ok := fieldMessages[fe.Tag()]
			if !ok {
				msg = "is invalid"
			}
			fields[fe.Field()] = msg
		}
	case errors.As(err, &typeErr):
		fields[typeErr.Field] = "is invalid"
	default:
		for _, name := range []string{"price", "percent"} {
			raw := strings.TrimSpace(c.PostForm(name))
			if raw == "" {
				continue
			}
			if _, perr := strconv.ParseFloat(raw, 64); perr != nil {
				fields[name] = "must be a number"
			}
		}
	}
	return fields, err
}
