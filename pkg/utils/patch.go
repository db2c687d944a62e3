package utils

import (
	"reflect"
	"strings"

	"github.com/aarondl/null/v8"
)

// ApplyUpdates переносит заполненные поля из src (частичный DTO с указателями
// и null-типами) в dst (сущность). Возвращает true, если хоть одно поле изменилось.
func ApplyUpdates(dst interface{}, src interface{}) bool {
	dstVal := reflect.ValueOf(dst).Elem()
	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() == reflect.Ptr {
		srcVal = srcVal.Elem()
	}

	hasChanges := false

	for i := 0; i < srcVal.NumField(); i++ {
		srcField := srcVal.Field(i)
		fieldType := srcVal.Type().Field(i)

		dstField := dstVal.FieldByName(fieldType.Name)
		if !dstField.IsValid() || !dstField.CanSet() {
			continue
		}

		// null.String из DTO присваивается как есть: невалидное значение
		// в DTO означает "поле не прислано", см. PatchFields.
		if ns, ok := srcField.Interface().(null.String); ok {
			if !ns.Valid {
				continue
			}
			if dstField.Type() == srcField.Type() {
				if cur, _ := dstField.Interface().(null.String); cur != ns {
					dstField.Set(srcField)
					hasChanges = true
				}
			} else if dstField.Kind() == reflect.String {
				if dstField.String() != ns.String {
					dstField.SetString(ns.String)
					hasChanges = true
				}
			}
			continue
		}

		if srcField.Kind() != reflect.Ptr || srcField.IsNil() {
			continue
		}

		if dstField.Kind() == reflect.Ptr {
			if dstField.IsNil() || dstField.Elem().Interface() != srcField.Elem().Interface() {
				dstField.Set(srcField)
				hasChanges = true
			}
		} else {
			val := srcField.Elem()
			if !val.Type().AssignableTo(dstField.Type()) {
				if val.Type().ConvertibleTo(dstField.Type()) {
					val = val.Convert(dstField.Type())
				} else {
					continue
				}
			}
			if dstField.Interface() != val.Interface() {
				dstField.Set(val)
				hasChanges = true
			}
		}
	}
	return hasChanges
}

// PatchFields возвращает json-имена полей, реально заполненных в частичном DTO.
// Именно по этим именам мутатор ведёт учёт конфликтов "поле за полем".
func PatchFields(patch interface{}) []string {
	val := reflect.ValueOf(patch)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	var fields []string
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		jsonName := strings.Split(val.Type().Field(i).Tag.Get("json"), ",")[0]
		if jsonName == "" || jsonName == "-" {
			continue
		}

		switch {
		case field.Kind() == reflect.Ptr:
			if !field.IsNil() {
				fields = append(fields, jsonName)
			}
		default:
			if ns, ok := field.Interface().(null.String); ok && ns.Valid {
				fields = append(fields, jsonName)
			}
		}
	}
	return fields
}
