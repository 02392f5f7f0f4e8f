package shop

// Item — позиция витрины.
type Item struct {
	Label string // ключ позиции, он же метка в инвентаре
	Title string
	Price int64 // монеты
	Desc  string
}

// Catalog — статичная витрина цифровых товаров.
// Порядок определяет порядок кнопок.
var Catalog = []Item{
	{
		Label: "proxy",
		Title: "🌐 Приватный прокси (30 дней)",
		Price: 150,
		Desc:  "IPv4 прокси, выдача данных после покупки через вывод из инвентаря.",
	},
	{
		Label: "vpn_key",
		Title: "🔑 VPN-ключ (30 дней)",
		Price: 200,
		Desc:  "Ключ доступа к VPN, один ключ на устройство.",
	},
	{
		Label: "tg_account",
		Title: "📱 Telegram-аккаунт",
		Price: 450,
		Desc:  "Готовый аккаунт, формат session+json.",
	},
	{
		Label: "stars_gift",
		Title: "⭐ Подарочные 50 Stars",
		Price: 60,
		Desc:  "50 Telegram Stars подарком на ваш аккаунт.",
	},
}

// FindItem ищет позицию витрины по метке.
func FindItem(label string) (Item, bool) {
	for _, it := range Catalog {
		if it.Label == label {
			return it, true
		}
	}
	return Item{}, false
}
