package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"telegram-shop/model"
	"telegram-shop/service"
)

const (
	CallbackOpenShop   = "open_shop"
	CallbackViewOrders = "view_orders"
	CallbackHelp       = "help"

	verbProduct  = "product"
	verbCategory = "category"

	categoryPreviewLimit = 5

	MsgFallback         = "Используйте команды для навигации по боту."
	MsgProductNotFound  = "Товар не найден."
	MsgCategoryEmpty    = "Товары в данной категории не найдены."
	MsgNoOrders         = "У вас пока нет заказов."
	MsgOrdersLoadFailed = "Не удалось загрузить заказы. Попробуйте позже."
)

// Reply is the message the bot answers with.
type Reply struct {
	Text     string
	Keyboard [][]model.Button
}

// OrderLister returns the orders placed from one chat.
type OrderLister interface {
	ListByChat(chatID string) ([]model.Order, error)
}

type Options struct {
	ShopURL       string
	Currency      string
	Location      *time.Location
	OrdersEnabled bool
}

// Router turns an inbound command or callback into a Reply. It keeps no
// per-chat state between calls.
type Router struct {
	catalog service.CatalogInterface
	orders  OrderLister
	opts    Options

	commands  map[string]func(chatID string) Reply
	callbacks map[string]func(chatID string) Reply
	verbs     map[string]func(arg string) Reply
}

func NewRouter(catalog service.CatalogInterface, orders OrderLister, opts Options) *Router {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	r := &Router{catalog: catalog, orders: orders, opts: opts}

	r.commands = map[string]func(string) Reply{
		"/start":  func(string) Reply { return welcome() },
		"/shop":   func(string) Reply { return shop() },
		"/orders": r.ordersReply,
		"/help":   func(string) Reply { return help() },
	}
	r.callbacks = map[string]func(string) Reply{
		CallbackOpenShop:   func(string) Reply { return shop() },
		CallbackViewOrders: r.ordersReply,
		CallbackHelp:       func(string) Reply { return help() },
	}
	r.verbs = map[string]func(string) Reply{
		verbProduct:  r.productDetails,
		verbCategory: r.categoryListing,
	}
	return r
}

// HandleMessage dispatches a text message. "/start <payload>" deep links
// are treated as /start.
func (r *Router) HandleMessage(chatID, text string) Reply {
	cmd := strings.TrimSpace(text)
	if i := strings.IndexByte(cmd, ' '); i > 0 {
		cmd = cmd[:i]
	}
	// commands addressed to a bot in groups: /shop@my_bot
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	if h, ok := r.commands[cmd]; ok {
		return h(chatID)
	}
	return Reply{Text: MsgFallback}
}

// HandleCallback dispatches callback data: exact ids first, then
// "<verb>_<argument>" split at the first underscore.
func (r *Router) HandleCallback(chatID, data string) Reply {
	if h, ok := r.callbacks[data]; ok {
		return h(chatID)
	}
	verb, arg, ok := strings.Cut(data, "_")
	if ok {
		if h, found := r.verbs[verb]; found {
			return h(arg)
		}
	}
	log.WithField("data", data).Debug("unhandled callback")
	return Reply{Text: MsgFallback}
}

func welcome() Reply {
	return Reply{
		Text: "🛍️ <b>Добро пожаловать в наш магазин!</b>\n\n" +
			"Здесь вы можете:\n" +
			"• Просматривать каталог товаров\n" +
			"• Добавлять товары в корзину\n" +
			"• Оформлять заказы\n" +
			"• Отслеживать статус заказов\n\n" +
			"Используйте кнопки ниже для навигации:",
		Keyboard: [][]model.Button{
			{{Text: "🛒 Открыть магазин", CallbackData: CallbackOpenShop}},
			{{Text: "📦 Мои заказы", CallbackData: CallbackViewOrders}},
			{{Text: "❓ Помощь", CallbackData: CallbackHelp}},
		},
	}
}

func shop() Reply {
	return Reply{
		Text: "🛍️ <b>Каталог товаров</b>\n\nВыберите категорию для просмотра товаров:",
		Keyboard: [][]model.Button{
			{{Text: "📱 Электроника", CallbackData: "category_electronics"}},
			{{Text: "👕 Одежда", CallbackData: "category_clothing"}},
			{{Text: "🏠 Дом", CallbackData: "category_home"}},
			{{Text: "⚽ Спорт", CallbackData: "category_sports"}},
			{{Text: "🔄 Все товары", CallbackData: "category_all"}},
		},
	}
}

func help() Reply {
	return Reply{
		Text: "❓ <b>Помощь</b>\n\n" +
			"<b>Команды бота:</b>\n" +
			"/start - Начать работу с ботом\n" +
			"/shop - Открыть магазин\n" +
			"/orders - Посмотреть заказы\n" +
			"/help - Показать эту справку\n\n" +
			"<b>Как сделать заказ:</b>\n" +
			"1. Откройте магазин командой /shop\n" +
			"2. Выберите товары и добавьте их в корзину\n" +
			"3. Оформите заказ с указанием ваших данных\n" +
			"4. Дождитесь подтверждения от менеджера\n\n" +
			"<b>Поддержка:</b>\n" +
			"Если у вас есть вопросы, обратитесь к администратору.",
		Keyboard: [][]model.Button{
			{{Text: "🛒 Открыть магазин", CallbackData: CallbackOpenShop}},
		},
	}
}

func (r *Router) categoryListing(category string) Reply {
	products := r.catalog.List(category, "")
	if len(products) == 0 {
		return Reply{Text: MsgCategoryEmpty}
	}

	text := fmt.Sprintf("📦 <b>Товары в категории \"%s\"</b>", html.EscapeString(service.CategoryName(category)))

	keyboard := make([][]model.Button, 0, categoryPreviewLimit+1)
	for i, p := range products {
		if i == categoryPreviewLimit {
			break
		}
		keyboard = append(keyboard, []model.Button{{
			Text:         fmt.Sprintf("%s - %s", p.Title, service.FormatPrice(p.Price, r.opts.Currency)),
			CallbackData: fmt.Sprintf("%s_%d", verbProduct, p.ID),
		}})
	}
	if len(products) > categoryPreviewLimit && r.opts.ShopURL != "" {
		keyboard = append(keyboard, []model.Button{{Text: "📱 Открыть полный каталог", URL: r.opts.ShopURL}})
	}
	return Reply{Text: text, Keyboard: keyboard}
}

func (r *Router) productDetails(arg string) Reply {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return Reply{Text: MsgProductNotFound}
	}
	p, err := r.catalog.Find(id)
	if err != nil {
		return Reply{Text: MsgProductNotFound}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📦 <b>%s</b>\n\n", html.EscapeString(p.Title))
	fmt.Fprintf(&b, "%s\n\n", html.EscapeString(p.Description))
	fmt.Fprintf(&b, "💰 <b>Цена:</b> %s\n", service.FormatPrice(p.Price, r.opts.Currency))
	if p.OldPrice > 0 {
		fmt.Fprintf(&b, "💸 <b>Старая цена:</b> %s\n", service.FormatPrice(p.OldPrice, r.opts.Currency))
	}
	fmt.Fprintf(&b, "📂 <b>Категория:</b> %s\n", html.EscapeString(service.CategoryName(p.Category)))
	if p.InStock {
		b.WriteString("✅ В наличии\n\n")
	} else {
		b.WriteString("❌ Нет в наличии\n\n")
	}
	b.WriteString("Для покупки перейдите в наш магазин:")

	keyboard := [][]model.Button{}
	if r.opts.ShopURL != "" {
		keyboard = append(keyboard, []model.Button{{Text: "🛒 Открыть магазин", URL: r.opts.ShopURL}})
	}
	keyboard = append(keyboard, []model.Button{{Text: "🔙 Назад к каталогу", CallbackData: CallbackOpenShop}})
	return Reply{Text: b.String(), Keyboard: keyboard}
}

func (r *Router) ordersReply(chatID string) Reply {
	if !r.opts.OrdersEnabled {
		return Reply{Text: MsgFallback}
	}
	orders, err := r.orders.ListByChat(chatID)
	if err != nil {
		log.WithError(err).WithField("chatID", chatID).Error("failed to list orders")
		return Reply{Text: MsgOrdersLoadFailed}
	}
	if len(orders) == 0 {
		return Reply{Text: MsgNoOrders}
	}

	var b strings.Builder
	b.WriteString("📦 <b>Ваши заказы:</b>\n\n")
	for i, o := range orders {
		fmt.Fprintf(&b, "%d. Заказ #%s\n", i+1, html.EscapeString(o.ID))
		fmt.Fprintf(&b, "   Статус: %s\n", service.StatusLabel(o.Status))
		fmt.Fprintf(&b, "   Сумма: %s\n", service.FormatPrice(o.Total, r.opts.Currency))
		fmt.Fprintf(&b, "   Дата: %s\n\n", service.FormatDate(o.CreatedAt, r.opts.Location))
	}
	return Reply{
		Text: strings.TrimRight(b.String(), "\n"),
		Keyboard: [][]model.Button{
			{{Text: "🛒 Сделать новый заказ", CallbackData: CallbackOpenShop}},
		},
	}
}
