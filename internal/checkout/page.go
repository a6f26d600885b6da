package checkout

import "html/template"

type pageData struct {
	Key         string
	Amount      int64
	Currency    string
	OrderID     string
	Name        string
	Description string
	ThemeColor  string
	CompleteURL string
	DismissURL  string
}

var pageTemplate = template.Must(template.New("checkout").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Name}}</title>
<script src="https://checkout.razorpay.com/v1/checkout.js"></script>
</head>
<body>
<p id="status">Opening payment window...</p>
<script>
(function () {
  var status = document.getElementById('status');
  function post(url, body, done) {
    fetch(url, {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify(body || {})
    }).then(function () { status.textContent = done; })
      .catch(function () { status.textContent = 'Could not reach the chat client. Please contact staff.'; });
  }
  var rzp = new Razorpay({
    key: {{.Key}},
    amount: {{.Amount}},
    currency: {{.Currency}},
    name: {{.Name}},
    description: {{.Description}},
    order_id: {{.OrderID}},
    handler: function (response) {
      post({{.CompleteURL}}, {
        razorpay_payment_id: response.razorpay_payment_id,
        razorpay_order_id: response.razorpay_order_id,
        razorpay_signature: response.razorpay_signature
      }, 'Payment received. You can close this window.');
    },
    modal: {
      ondismiss: function () {
        post({{.DismissURL}}, {}, 'Payment cancelled. You can close this window.');
      }
    },
    theme: { color: {{.ThemeColor}} }
  });
  rzp.open();
})();
</script>
</body>
</html>
`))
