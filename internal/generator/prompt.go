package generator

import "strings"

// SystemPrompt is sent with every chat request, on both providers.
const SystemPrompt = "Ты пишешь продающие описания автозапчастей. Используй только русский язык."

const promptWithArticle = `Ты специалист по автозапчастям и маркетолог. Используй данные:
- Артикул: {article}
- Наименование: {name}

Задача:
1. Напиши структурированное HTML-описание (h2/h3/p/ul/li/strong) на русском языке.
2. Сделай акцент на назначении запчасти, преимуществах, совместимости и установке.
3. Укажи артикул и ключевые выгоды.
4. Объём 90–140 слов. Не добавляй произвольные цены и ссылки.
`

const promptWithoutArticle = `Ты специалист по автозапчастям и маркетолог. Используй данные:
- Наименование: {name}

Задача:
1. Напиши структурированное HTML-описание (h2/h3/p/ul/li/strong) на русском языке.
2. Сделай акцент на назначении запчасти, преимуществах, совместимости и установке.
3. Подчеркни ключевые выгоды для покупателя.
4. Объём 90–140 слов. Не добавляй произвольные цены и ссылки.
`

// BuildPrompt renders the model prompt for one row. A non-empty template
// overrides the built-in ones: {article} and {name} are substituted where
// present, and a template without placeholders comes back unmodified. The
// function never fails.
func BuildPrompt(article, name, template string) string {
	article = strings.TrimSpace(article)
	name = strings.TrimSpace(name)

	tpl := strings.TrimSpace(template)
	if tpl == "" {
		if article != "" {
			tpl = promptWithArticle
		} else {
			tpl = promptWithoutArticle
		}
	}

	out := strings.ReplaceAll(tpl, "{name}", name)
	if article != "" {
		out = strings.ReplaceAll(out, "{article}", article)
	}
	return out
}
