package i18n

import (
	"strings"
)

const Fallback = "en"

var tables = map[string]map[string]string{
	"en": {
		"app_title":         "Trade Helper",
		"nav_prices":        "Prices",
		"nav_cities":        "Cities",
		"nav_routes":        "Profitable Routes",
		"nav_add":           "Add Entry",
		"nav_import":        "Import CSV",
		"price":             "Price",
		"percent":           "Percent",
		"trend":             "Trend",
		"up":                "up",
		"down":              "down",
		"flat":              "flat",
		"city":              "City",
		"product":           "Product",
		"is_prod_city":      "Production city",
		"yes":               "Yes",
		"no":                "No",
		"actions":           "Actions",
		"edit":              "Edit",
		"save":              "Save",
		"create":            "Create",
		"delete":            "Delete",
		"new_entry":         "New Entry",
		"edit_entry":        "Edit Entry",
		"lang":              "Language",
		"upload_csv":        "Upload CSV",
		"choose_file":       "Choose file",
		"import":            "Import",
		"growth":            "Growth",
		"drop":              "Drop",
		"filters":           "Filters",
		"route_buy":         "Buy in",
		"route_sell":        "Sell in",
		"spread":            "Spread",
		"profit":            "Profit",
		"no_data":           "No data yet.",
		"produces":          "Produces",
		"avg_price":         "Avg price",
		"submit":            "Submit",
		"edit_existing":     "Entry already exists. Redirected to edit.",
		"back":              "Back",
		"imported":          "Imported {n} rows",
		"import_summary":    "Inserted {inserted}, updated {updated}, skipped {skipped}",
		"saved":             "Saved",
		"updated":           "Updated",
		"deleted":           "Deleted",
		"deduped":           "Removed {n} duplicates",
		"pending_requests":  "Pending requests",
		"request_submitted": "Request submitted for review",
		"approve":           "Approve",
		"reject":            "Reject",
		"approved":          "Approved",
		"rejected":          "Rejected",
		"admin_token":       "Admin token",
		"need_admin_token":  "Admin token required for this action",
		"cannot_edit":       "Cannot edit",
		"invalid_input":     "Please check the highlighted fields",
		"not_found":         "Not found",
		"server_error":      "Something went wrong",
		"dedupe":            "Deduplicate",
		"items":             "items",
		"pairs":             "pairs",
	},
	"ru": {
		"app_title":         "Трейд Хелпер",
		"nav_prices":        "Цены",
		"nav_cities":        "Города",
		"nav_routes":        "Маршруты",
		"nav_add":           "Добавить запись",
		"nav_import":        "Импорт CSV",
		"price":             "Цена",
		"percent":           "Процент",
		"trend":             "Тренд",
		"up":                "рост",
		"down":              "падение",
		"flat":              "без изменений",
		"city":              "Город",
		"product":           "Товар",
		"is_prod_city":      "Производственный город",
		"yes":               "Да",
		"no":                "Нет",
		"actions":           "Действия",
		"edit":              "Править",
		"save":              "Сохранить",
		"create":            "Создать",
		"delete":            "Удалить",
		"new_entry":         "Новая запись",
		"edit_entry":        "Редактировать запись",
		"lang":              "Язык",
		"upload_csv":        "Загрузить CSV",
		"choose_file":       "Выберите файл",
		"import":            "Импорт",
		"growth":            "Рост",
		"drop":              "Падение",
		"filters":           "Фильтры",
		"route_buy":         "Покупать в",
		"route_sell":        "Продавать в",
		"spread":            "Спред",
		"profit":            "Профит",
		"no_data":           "Данных пока нет.",
		"produces":          "Производит",
		"avg_price":         "Средняя цена",
		"submit":            "Отправить",
		"edit_existing":     "Запись уже существует. Перенаправляем на редактирование.",
		"back":              "Назад",
		"imported":          "Импортировано {n} строк",
		"import_summary":    "Добавлено {inserted}, обновлено {updated}, пропущено {skipped}",
		"saved":             "Сохранено",
		"updated":           "Обновлено",
		"deleted":           "Удалено",
		"deduped":           "Удалено дубликатов: {n}",
		"pending_requests":  "Заявки на добавление",
		"request_submitted": "Заявка отправлена на рассмотрение",
		"approve":           "Одобрить",
		"reject":            "Отклонить",
		"approved":          "Одобрено",
		"rejected":          "Отклонено",
		"admin_token":       "Токен админа",
		"need_admin_token":  "Для этого действия нужен токен админа",
		"cannot_edit":       "Нельзя изменить",
		"invalid_input":     "Проверьте отмеченные поля",
		"not_found":         "Не найдено",
		"server_error":      "Что-то пошло не так",
		"dedupe":            "Удалить дубликаты",
		"items":             "тов.",
		"pairs":             "пар",
	},
}

// Supported reports whether lang has a string table.
func Supported(lang string) bool {
	_, ok := tables[lang]
	return ok
}

// Resolve picks the first non-empty candidate and falls back to English when
// that language is unknown.
func Resolve(candidates ...string) string {
	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if Supported(c) {
			return c
		}
		return Fallback
	}
	return Fallback
}

// T looks key up in lang, then in English, then returns the key itself.
func T(lang, key string) string {
	if s, ok := tables[lang][key]; ok {
		return s
	}
	if s, ok := tables[Fallback][key]; ok {
		return s
	}
	return key
}

// Format translates key and replaces {name} placeholders with args.
func Format(lang, key string, args map[string]string) string {
	s := T(lang, key)
	if len(args) == 0 {
		return s
	}
	pairs := make([]string, 0, len(args)*2)
	for name, value := range args {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Table returns a copy of the strings for lang.
func Table(lang string) map[string]string {
	src, ok := tables[lang]
	if !ok {
		src = tables[Fallback]
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
