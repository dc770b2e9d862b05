package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// scriptProductID runs the page's inline scripts in a sandbox and reads the
// storefront's `meta.product.id` global. Only scripts mentioning "meta" run.
func (e *Extractor) scriptProductID() Strategy[string] {
	return func(s *goquery.Selection) (id string, ok bool) {
		defer func() {
			if r := recover(); r != nil {
				log.Debug().Interface("panic", r).Msg("Inline script evaluation aborted")
				id, ok = "", false
			}
		}()

		vm := goja.New()
		vm.Set("window", vm.GlobalObject())
		vm.Set("self", vm.GlobalObject())
		vm.Set("document", map[string]interface{}{})
		vm.Set("console", map[string]interface{}{
			"log":   func(goja.FunctionCall) goja.Value { return nil },
			"error": func(goja.FunctionCall) goja.Value { return nil },
		})

		timer := time.AfterFunc(e.scriptBudget, func() {
			vm.Interrupt("script budget exceeded")
		})
		defer timer.Stop()

		s.Find("script").Each(func(_ int, sc *goquery.Selection) {
			if _, external := sc.Attr("src"); external {
				return
			}
			if t, has := sc.Attr("type"); has && !strings.Contains(t, "javascript") {
				return
			}
			body := sc.Text()
			if !strings.Contains(body, "meta") {
				return
			}
			if _, err := vm.RunString(body); err != nil {
				// Most storefront scripts touch DOM APIs we do not provide.
				log.Debug().Err(err).Msg("Inline script failed")
			}
		})

		return productIDFromMeta(vm)
	}
}

func productIDFromMeta(vm *goja.Runtime) (string, bool) {
	meta := vm.Get("meta")
	if !isObject(meta) {
		return "", false
	}
	product := meta.ToObject(vm).Get("product")
	if !isObject(product) {
		return "", false
	}
	id := product.ToObject(vm).Get("id")
	if id == nil || goja.IsUndefined(id) || goja.IsNull(id) {
		return "", false
	}

	switch v := id.Export().(type) {
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	}
	return "", false
}

func isObject(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	_, ok := v.Export().(map[string]interface{})
	return ok
}
