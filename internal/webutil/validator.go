// internal/webutil/validator.go
package webutil

import (
	"log"
	"reflect"
	"strings"

	"github.com/go-playground/locales/ja"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	ja_translations "github.com/go-playground/validator/v10/translations/ja"
)

// Validator はアプリケーション全体で共有されるバリデータインスタンスです。
var Validator *validator.Validate

// Trans はエラーメッセージを翻訳するためのトランスレータです。
var Trans ut.Translator

var fieldNameTranslations = map[string]string{
	"selected_options": "選択肢",
	"artifact_ref":     "成果物リンク",
	"score":            "スコア",
	"verdict":          "判定",
	"rationale":        "講評",
}

func init() {
	Validator = validator.New()

	// エラーメッセージにはJSONタグのフィールド名を使う
	Validator.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// 日本語のロケールとトランスレータを設定
	japanese := ja.New()
	uni := ut.New(japanese, japanese)
	var found bool
	Trans, found = uni.GetTranslator("ja")
	if !found {
		log.Fatal("translator not found")
	}

	if err := ja_translations.RegisterDefaultTranslations(Validator, Trans); err != nil {
		log.Fatal(err)
	}

	// タグごとの日本語メッセージを登録するヘルパー。
	// フィールド名はマップで日本語化し、無ければJSONタグ名のまま。
	registerTranslation := func(tag string, msg string, withParam bool) {
		Validator.RegisterTranslation(tag, Trans, func(ut ut.Translator) error {
			return ut.Add(tag, msg, true)
		}, func(ut ut.Translator, fe validator.FieldError) string {
			fieldName := fe.Field()
			translatedFieldName, ok := fieldNameTranslations[fieldName]
			if !ok {
				translatedFieldName = fieldName
			}
			var t string
			if withParam {
				t, _ = ut.T(tag, translatedFieldName, fe.Param())
			} else {
				t, _ = ut.T(tag, translatedFieldName)
			}
			return t
		})
	}

	registerTranslation("required", "{0}は必須項目です。", false)
	registerTranslation("min", "{0}は{1}以上で入力してください。", true)
	registerTranslation("max", "{0}は{1}以下で入力してください。", true)
	registerTranslation("gte", "{0}は{1}以上で入力してください。", true)
	registerTranslation("lte", "{0}は{1}以下で入力してください。", true)
	registerTranslation("oneof", "{0}の値が正しくありません。", false)
}
