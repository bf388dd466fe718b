package leadflow

const (
	pitchCaption = "Николай и Павел Дуровы создали уникальную экосистему Telegram, которая сегодня открывает новые возможности онлайн-заработка.\n" +
		"🧠 GPT-invest — это интеллектуальная платформа, которая помогает пользователям получать доход, выполняя простые действия прямо со смартфона.\n" +
		"Тысячи людей уже начали зарабатывать — подключайтесь и начните свой путь к финансовой свободе.\n" +
		"🔍 Подробнее — внутри бота."
	pitchButton = "Оставить заявку"

	answerSavedFmt = "✅ Ответ сохранён: %s"
	formIntro      = "Спасибо! Теперь заполним форму заявки👇"

	promptName    = "Введите имя:"
	promptSurname = "Введите фамилию:"
	promptPhone   = "Отправьте номер телефона или нажмите кнопку:"
	contactButton = "📱 Отправить контакт"
	promptEmail   = "Введите email:"
	retryEmail    = "Введите корректный email:"

	outcomeAccepted  = "Ваша заявка успешно принята! ✔️\n✉️ Ожидайте звонка от менеджера!"
	outcomeRejected  = "⚠️ Ошибка: %d"
	outcomeTransport = "❌ Ошибка отправки: %v"
)
